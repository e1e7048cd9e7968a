package actions

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// FailedJobDefinition narrows a workflow file to the definition of the
// job named jobName, keeping the workflow name and triggers for context.
// Matrix job names such as "test (ubuntu-latest, 3.12)" match their base
// name. When the job cannot be located the whole document is returned.
func FailedJobDefinition(workflowYAML, jobName string) string {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(workflowYAML), &doc); err != nil || len(doc.Content) == 0 {
		return workflowYAML
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return workflowYAML
	}

	jobs := mappingValue(root, "jobs")
	if jobs == nil || jobs.Kind != yaml.MappingNode {
		return workflowYAML
	}
	key, job := findJob(jobs, jobName)
	if job == nil {
		return workflowYAML
	}

	out := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(root.Content); i += 2 {
		switch root.Content[i].Value {
		case "name", "on", "env":
			out.Content = append(out.Content, root.Content[i], root.Content[i+1])
		}
	}
	out.Content = append(out.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "jobs"},
		&yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{key, job}},
	)

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return workflowYAML
	}
	_ = enc.Close()
	return strings.TrimSpace(b.String())
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// findJob matches by display name first, then by job id.
func findJob(jobs *yaml.Node, jobName string) (*yaml.Node, *yaml.Node) {
	base := jobName
	if i := strings.Index(base, " ("); i > 0 {
		base = base[:i]
	}
	candidates := []string{jobName, base}

	for _, want := range candidates {
		for i := 0; i+1 < len(jobs.Content); i += 2 {
			job := jobs.Content[i+1]
			if job.Kind != yaml.MappingNode {
				continue
			}
			if name := mappingValue(job, "name"); name != nil && name.Value == want {
				return jobs.Content[i], job
			}
		}
	}
	for _, want := range candidates {
		for i := 0; i+1 < len(jobs.Content); i += 2 {
			if jobs.Content[i].Value == want {
				return jobs.Content[i], jobs.Content[i+1]
			}
		}
	}
	return nil, nil
}

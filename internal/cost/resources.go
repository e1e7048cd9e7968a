package cost

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Resources is the running inventory shown next to the bill. Stopped
// instances and unattached volumes are the usual hidden costs.
type Resources struct {
	EC2Instances      int `json:"ec2_instances"`
	StoppedInstances  int `json:"stopped_instances"`
	EBSVolumes        int `json:"ebs_volumes"`
	UnattachedVolumes int `json:"unattached_volumes"`
	S3Buckets         int `json:"s3_buckets"`
	RDSInstances      int `json:"rds_instances"`
	LambdaFunctions   int `json:"lambda_functions"`

	// Unavailable lists inventories that could not be read.
	Unavailable []string `json:"unavailable,omitempty"`
}

// Lines renders the inventory for prompts and reports.
func (r Resources) Lines() []string {
	lines := []string{
		fmt.Sprintf("- EC2 Instances: %d (%d stopped)", r.EC2Instances, r.StoppedInstances),
		fmt.Sprintf("- EBS Volumes: %d (%d unattached)", r.EBSVolumes, r.UnattachedVolumes),
		fmt.Sprintf("- S3 Buckets: %d", r.S3Buckets),
		fmt.Sprintf("- RDS Instances: %d", r.RDSInstances),
		fmt.Sprintf("- Lambda Functions: %d", r.LambdaFunctions),
	}
	if len(r.Unavailable) > 0 {
		lines = append(lines, "- Not readable: "+strings.Join(r.Unavailable, ", "))
	}
	return lines
}

// String joins Lines.
func (r Resources) String() string {
	return strings.Join(r.Lines(), "\n")
}

// ResourceCounts reads the inventory. Each service is read independently;
// a failing one is recorded in Unavailable and leaves its counts at zero.
func (c *Clients) ResourceCounts(ctx context.Context) Resources {
	var res Resources
	unavailable := func(name string) { res.Unavailable = append(res.Unavailable, name) }

	if c.EC2 == nil {
		unavailable("ec2")
	} else if err := countInstances(ctx, c.EC2, &res); err != nil {
		unavailable("ec2")
	}
	if c.EC2 == nil {
		unavailable("ebs")
	} else if err := countVolumes(ctx, c.EC2, &res); err != nil {
		unavailable("ebs")
	}

	if c.S3 == nil {
		unavailable("s3")
	} else if out, err := c.S3.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		unavailable("s3")
	} else {
		res.S3Buckets = len(out.Buckets)
	}

	if c.RDS == nil {
		unavailable("rds")
	} else if n, err := countDBInstances(ctx, c.RDS); err != nil {
		unavailable("rds")
	} else {
		res.RDSInstances = n
	}

	if c.Lambda == nil {
		unavailable("lambda")
	} else if n, err := countFunctions(ctx, c.Lambda); err != nil {
		unavailable("lambda")
	} else {
		res.LambdaFunctions = n
	}
	return res
}

func countInstances(ctx context.Context, api ec2.DescribeInstancesAPIClient, res *Resources) error {
	p := ec2.NewDescribeInstancesPaginator(api, &ec2.DescribeInstancesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				res.EC2Instances++
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameStopped {
					res.StoppedInstances++
				}
			}
		}
	}
	return nil
}

func countVolumes(ctx context.Context, api ec2.DescribeVolumesAPIClient, res *Resources) error {
	p := ec2.NewDescribeVolumesPaginator(api, &ec2.DescribeVolumesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, v := range page.Volumes {
			res.EBSVolumes++
			if v.State == ec2types.VolumeStateAvailable {
				res.UnattachedVolumes++
			}
		}
	}
	return nil
}

func countDBInstances(ctx context.Context, api rds.DescribeDBInstancesAPIClient) (int, error) {
	n := 0
	p := rds.NewDescribeDBInstancesPaginator(api, &rds.DescribeDBInstancesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n += len(page.DBInstances)
	}
	return n, nil
}

func countFunctions(ctx context.Context, api lambda.ListFunctionsAPIClient) (int, error) {
	n := 0
	p := lambda.NewListFunctionsPaginator(api, &lambda.ListFunctionsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n += len(page.Functions)
	}
	return n, nil
}

// Package cost reads AWS billing and resource inventory for the cost
// detective.
package cost

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// BillingRegion is where Cost Explorer is served.
const BillingRegion = "us-east-1"

// CostExplorerAPI is the Cost Explorer subset used here.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, in *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// EC2API is the EC2 subset used here.
type EC2API interface {
	ec2.DescribeInstancesAPIClient
	ec2.DescribeVolumesAPIClient
}

// S3API is the S3 subset used here.
type S3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// STSAPI checks credentials.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Clients bundles the AWS APIs the detective talks to. RDS and Lambda may
// be nil; their counts are then reported as unavailable.
type Clients struct {
	CostExplorer CostExplorerAPI
	EC2          EC2API
	S3           S3API
	RDS          rds.DescribeDBInstancesAPIClient
	Lambda       lambda.ListFunctionsAPIClient
	STS          STSAPI
}

// NewClients loads the default credential chain (env, shared config,
// SSO, instance role) and builds every client. An empty region uses the
// one from the environment or profile, falling back to BillingRegion.
func NewClients(ctx context.Context, region, profile string) (*Clients, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = BillingRegion
	}

	billing := cfg.Copy()
	billing.Region = BillingRegion

	return &Clients{
		CostExplorer: costexplorer.NewFromConfig(billing),
		EC2:          ec2.NewFromConfig(cfg),
		S3:           s3.NewFromConfig(cfg),
		RDS:          rds.NewFromConfig(cfg),
		Lambda:       lambda.NewFromConfig(cfg),
		STS:          sts.NewFromConfig(cfg),
	}, nil
}

// CheckCredentials verifies that the credential chain resolves and returns
// the caller's account id.
func (c *Clients) CheckCredentials(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("AWS credentials are not configured (run 'aws configure'): %w", err)
	}
	return aws.ToString(out.Account), nil
}

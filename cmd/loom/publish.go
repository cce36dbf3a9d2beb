package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loom-dev/loom/internal/config"
	"github.com/loom-dev/loom/internal/publish"
)

func publishCmd() *cobra.Command {
	var (
		bucket string
		prefix string
		region string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload built artifacts to S3",
		Long: `Upload the static artifacts from the output directory to an S3
bucket. The server binary is not uploaded.

Credentials come from the default AWS credential chain (environment,
shared config, instance role).

Examples:
  loom publish --bucket my-site
  loom publish --bucket my-site --prefix v2 --region eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(bucket, prefix, region)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Target bucket (default from loom.json)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default from loom.json)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default from loom.json)")

	return cmd
}

func runPublish(bucket, prefix, region string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}

	if bucket == "" {
		bucket = cfg.Publish.Bucket
	}
	if prefix == "" {
		prefix = cfg.Publish.Prefix
	}
	if region == "" {
		region = cfg.Publish.Region
	}
	if bucket == "" {
		errorMsg("No bucket configured")
		info("Pass --bucket or set publish.bucket in loom.json")
		return fmt.Errorf("no bucket")
	}

	if _, err := os.Stat(cfg.OutputPath()); err != nil {
		errorMsg("No build output found")
		info("Run loom build first")
		return err
	}

	ctx := context.Background()
	publisher, err := publish.NewPublisherFromEnv(ctx, bucket, prefix, region)
	if err != nil {
		return err
	}

	info("Publishing to s3://" + bucket + "/" + prefix)
	start := time.Now()

	n, err := publisher.Publish(ctx, cfg.OutputPath())
	if err != nil {
		return err
	}

	success("Published %d artifacts in %s", n, time.Since(start).Round(time.Millisecond))
	return nil
}

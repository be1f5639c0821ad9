package blob

import (
	"context"
	"fmt"
	"os"
)

// Open selects a Store implementation using environment variables:
//
//	WORLDBUILDER_BLOB_DRIVER: fs|s3|memory (default fs)
//	WORLDBUILDER_BLOB_FS_ROOT: directory root when driver=fs (default ./snapshots)
//	WORLDBUILDER_BLOB_S3_BUCKET: bucket when driver=s3 (required)
//	WORLDBUILDER_BLOB_S3_REGION: region when driver=s3 (default us-east-1)
//	WORLDBUILDER_BLOB_S3_ENDPOINT: custom endpoint such as MinIO (optional)
//	WORLDBUILDER_BLOB_S3_PATH_STYLE: true|false (default false)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("WORLDBUILDER_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("WORLDBUILDER_BLOB_FS_ROOT"))
	case DriverS3:
		bucket := os.Getenv("WORLDBUILDER_BLOB_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("WORLDBUILDER_BLOB_S3_BUCKET required for s3 driver")
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Region:    os.Getenv("WORLDBUILDER_BLOB_S3_REGION"),
			Endpoint:  os.Getenv("WORLDBUILDER_BLOB_S3_ENDPOINT"),
			PathStyle: os.Getenv("WORLDBUILDER_BLOB_S3_PATH_STYLE") == "true",
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

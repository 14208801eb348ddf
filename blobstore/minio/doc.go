// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible servers such as Ceph,
// SeaweedFS and Garage, without requiring the AWS SDK.
//
// # Basic Usage
//
//	store, err := minio.Dial(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "features",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loader := feature.NewLoader(cache, feature.NewStoreSource(store))
package minio

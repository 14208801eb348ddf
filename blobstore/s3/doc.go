// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("features/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	loader := feature.NewLoader(cache, feature.NewStoreSource(store))
//
// # Features
//
//   - Range reads for blob access
//   - Multipart uploads for large frames
//   - CRC32C checksums verified by S3
//   - Automatic pagination for listing
package s3

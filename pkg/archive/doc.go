// Package archive stores list snapshots as JSON documents.
//
// Documents live in a Store addressed by URL:
//
//	file:///var/lib/flix/snapshots   local directory
//	/var/lib/flix/snapshots          same, without scheme
//	s3://bucket/prefix               Amazon S3 or a compatible endpoint
//
// The S3 store takes credentials from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN, the region from AWS_REGION
// and an optional endpoint from AWS_ENDPOINT_URL.
package archive

package s3

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func NewClient(bucket, region, prefix string) Client {
	return NewBasicClient(bucket, region, prefix).(Client)
}

// NewClientWithAPI allows tests to inject a fake S3 API.
func NewClientWithAPI(bucket, prefix string, api s3iface.S3API) Client {
	return NewBasicClientWithAPI(bucket, prefix, api).(Client)
}

// Move renames src to dst with a server-side copy so the object's metadata
// and content survive intact, then removes the source key.
func (s *basicClient) Move(ctx context.Context, src, dst string) error {
	_, err := s.api.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + s.getKeyWithPrefix(src)),
		Key:        aws.String(s.getKeyWithPrefix(dst)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return ErrKeyNotFound
		}
		return err
	}
	return s.Delete(ctx, src)
}

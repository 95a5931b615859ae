package s3

import (
	"bytes"
	"context"
	"io/ioutil"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func NewBasicClient(bucket, region, prefix string) BasicClient {
	awsConfig := aws.NewConfig()
	awsConfig.Region = aws.String(region)
	sess := session.Must(session.NewSession(awsConfig))
	api := s3.New(sess)
	return NewBasicClientWithAPI(bucket, prefix, api)
}

// NewBasicClientWithAPI allows tests to inject a fake S3 API.
func NewBasicClientWithAPI(bucket, prefix string, api s3iface.S3API) BasicClient {
	return &basicClient{
		bucket: bucket,
		prefix: prefix,
		api:    api,
	}
}

type basicClient struct {
	bucket string
	prefix string
	api    s3iface.S3API
}

func (s *basicClient) List(ctx context.Context, key string) (keys []string, err error) {
	keys = make([]string, 0, 1000)
	lastKey := ""
	for {
		params := &s3.ListObjectsInput{
			Bucket:  aws.String(s.bucket),
			Marker:  aws.String(lastKey),
			MaxKeys: aws.Int64(1000),
			Prefix:  aws.String(s.getKeyWithPrefix(key)),
		}
		resp, err := s.api.ListObjectsWithContext(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, v := range resp.Contents {
			keys = append(keys, *v.Key)
		}
		if len(keys) > 0 {
			lastKey = keys[len(keys)-1]
		}
		if !*resp.IsTruncated {
			break
		}
	}
	return
}

func (s *basicClient) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getKeyWithPrefix(key)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer res.Body.Close()
	return ioutil.ReadAll(res.Body)
}

func (s *basicClient) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getKeyWithPrefix(key)),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		input.Metadata = aws.StringMap(metadata)
	}
	_, err := s.api.PutObjectWithContext(ctx, input)
	return err
}

func (s *basicClient) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getKeyWithPrefix(key)),
	})
	return err
}

func (s *basicClient) getKeyWithPrefix(key string) string {
	if s.prefix != "" {
		return strings.TrimRight(s.prefix, "/") + "/" + key // ensure trailing slash after prefix.
	}
	return key
}

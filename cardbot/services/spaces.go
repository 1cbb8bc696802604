// Package services holds adapters for external infrastructure used by the
// card economy, currently the DigitalOcean Spaces bucket that stores card
// artwork.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// SpacesService resolves and manages card artwork stored in a DigitalOcean
// Spaces bucket. It satisfies catalog.ImageResolver.
type SpacesService struct {
	client   *s3.Client
	bucket   string
	region   string
	cardRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, cardRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &SpacesService{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		region:   region,
		cardRoot: strings.TrimPrefix(cardRoot, "/"),
	}, nil
}

// CardImageURL returns the public URL for a card's full-size artwork. Stored
// paths are relative to the card root; absolute paths are taken as-is so
// re-imported legacy sets keep working.
func (s *SpacesService) CardImageURL(series, path string) string {
	return s.publicURL(s.objectKey(series, path))
}

func (s *SpacesService) ThumbnailURL(series, path string) string {
	return s.publicURL(s.objectKey(series, "thumb/"+path))
}

func (s *SpacesService) objectKey(series, path string) string {
	path = strings.TrimPrefix(path, "/")
	if strings.HasPrefix(path, s.cardRoot+"/") {
		return path
	}
	return fmt.Sprintf("%s/%s/%s", s.cardRoot, series, path)
}

func (s *SpacesService) publicURL(key string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", s.bucket, s.region, key)
}

// VerifyCardImage checks that the artwork object actually exists in the
// bucket. The catalog calls it per card while importing a manifest.
func (s *SpacesService) VerifyCardImage(ctx context.Context, series, path string) (bool, error) {
	key := s.objectKey(series, path)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check image %s: %w", key, err)
	}
	return true, nil
}

func (s *SpacesService) GetBucket() string {
	return s.bucket
}

func (s *SpacesService) GetRegion() string {
	return s.region
}

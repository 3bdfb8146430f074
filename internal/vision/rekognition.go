// Package vision adapts hosted image-recognition services to the detection
// classifier interfaces.
package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/neuroti/Psi/internal/detection"
)

// labelDetector is the subset of the Rekognition client used here.
type labelDetector interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// genericLabels describe the scene rather than an item on the plate.
var genericLabels = map[string]bool{
	"food":      true,
	"meal":      true,
	"dish":      true,
	"lunch":     true,
	"dinner":    true,
	"breakfast": true,
	"plate":     true,
	"tableware": true,
	"cutlery":   true,
	"produce":   true,
	"table":     true,
}

type RekognitionOptions struct {
	MaxLabels int
	// MinConfidence is on the 0..1 scale.
	MinConfidence float64
	Timeout       time.Duration
}

// Rekognition is the primary classifier backed by AWS Rekognition DetectLabels.
type Rekognition struct {
	client labelDetector
	opts   RekognitionOptions
}

// NewRekognition creates a primary classifier for region using the default
// AWS credential chain.
func NewRekognition(ctx context.Context, region string, opts RekognitionOptions) (*Rekognition, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newRekognition(rekognition.NewFromConfig(cfg), opts), nil
}

func newRekognition(client labelDetector, opts RekognitionOptions) *Rekognition {
	if opts.MaxLabels <= 0 {
		opts.MaxLabels = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Rekognition{client: client, opts: opts}
}

func (r *Rekognition) Detect(ctx context.Context, image []byte) ([]detection.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(int32(r.opts.MaxLabels)),
		MinConfidence: aws.Float32(float32(r.opts.MinConfidence * 100)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect labels: %w", err)
	}

	var candidates []detection.Candidate
	for _, l := range out.Labels {
		name := strings.ToLower(strings.TrimSpace(aws.ToString(l.Name)))
		if name == "" || genericLabels[name] {
			continue
		}

		if len(l.Instances) == 0 {
			candidates = append(candidates, detection.Candidate{
				Label:      name,
				Confidence: float64(aws.ToFloat32(l.Confidence)) / 100,
				Region:     detection.FullFrame,
			})
			continue
		}
		for _, inst := range l.Instances {
			conf := inst.Confidence
			if conf == nil {
				conf = l.Confidence
			}
			candidates = append(candidates, detection.Candidate{
				Label:      name,
				Confidence: float64(aws.ToFloat32(conf)) / 100,
				Region:     toBox(inst.BoundingBox),
			})
		}
	}
	return candidates, nil
}

func toBox(b *types.BoundingBox) detection.Box {
	if b == nil {
		return detection.FullFrame
	}
	return detection.Box{
		Left:   float64(aws.ToFloat32(b.Left)),
		Top:    float64(aws.ToFloat32(b.Top)),
		Width:  float64(aws.ToFloat32(b.Width)),
		Height: float64(aws.ToFloat32(b.Height)),
	}
}

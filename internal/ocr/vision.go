package ocr

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionAnnotator calls the Cloud Vision API.
type VisionAnnotator struct {
	client *vision.ImageAnnotatorClient
}

var _ Annotator = (*VisionAnnotator)(nil)

func NewVisionAnnotator(ctx context.Context, credentialsFile string) (*VisionAnnotator, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionAnnotator{client: client}, nil
}

func (v *VisionAnnotator) Close() error {
	return v.client.Close()
}

func (v *VisionAnnotator) DetectText(ctx context.Context, image []byte) (string, error) {
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.GetResponses()) == 0 {
		return "", nil
	}
	r := resp.GetResponses()[0]
	if e := r.GetError(); e != nil && e.GetCode() != 0 {
		return "", fmt.Errorf("vision: %s (code %d)", e.GetMessage(), e.GetCode())
	}
	if len(r.GetTextAnnotations()) == 0 {
		return "", nil
	}
	return r.GetTextAnnotations()[0].GetDescription(), nil
}

func (v *VisionAnnotator) AnnotatePDF(ctx context.Context, inputURI, outputURI string) error {
	op, err := v.client.AsyncBatchAnnotateFiles(ctx, &visionpb.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionpb.AsyncAnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				GcsSource: &visionpb.GcsSource{Uri: inputURI},
				MimeType:  MimePDF,
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			OutputConfig: &visionpb.OutputConfig{
				GcsDestination: &visionpb.GcsDestination{Uri: outputURI},
				BatchSize:      2,
			},
		}},
	})
	if err != nil {
		return err
	}
	if _, err := op.Wait(ctx); err != nil {
		return err
	}
	return nil
}

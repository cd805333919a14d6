package model

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"github.com/nfnt/resize"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"signdetect/internal/render"
)

// Detect runs the model on the image at path and returns the kept detections
// together with an annotated copy of the image. Boxes below opts.Conf are
// dropped, overlapping boxes above opts.IoU are suppressed.
func (s *Server) Detect(path string, opts DetectOptions) (*DetectionBatch, error) {
	opts = opts.withDefaults()

	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	output, err := s.infer(prepareInput(img, s.Metadata.ImageSize))
	if err != nil {
		return nil, err
	}

	boxes := decodeBoxes(output, s.Metadata.Classes, s.Metadata.ImageSize, srcW, srcH, opts.Conf)
	kept := applyNMS(boxes, opts.IoU)

	detections := make([]Detection, len(kept))
	renderBoxes := make([]render.Box, len(kept))
	for i, det := range kept {
		det.Index = i + 1
		if name, ok := opts.Mapping[det.Class]; ok {
			det.ClassName = name
		}
		detections[i] = det
		renderBoxes[i] = render.Box{
			Label: fmt.Sprintf("%s %.2f", det.Class, det.Confidence),
			X1:    det.BBox.X1,
			Y1:    det.BBox.Y1,
			X2:    det.BBox.X2,
			Y2:    det.BBox.Y2,
		}
	}

	annotated, err := render.Annotate(img, renderBoxes, opts.Format, render.DefaultQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}

	return &DetectionBatch{Detections: detections, Annotated: annotated}, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// prepareInput resizes the image to the model's square input size and lays the
// pixels out as normalized CHW float32 planes.
func prepareInput(img image.Image, imageSize int) []float32 {
	resized := resize.Resize(uint(imageSize), uint(imageSize), img, resize.Lanczos3)

	stride := imageSize * imageSize
	input := make([]float32, 3*stride)
	idx := 0
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			input[idx] = float32(r>>8) / 255.0
			input[idx+stride] = float32(g>>8) / 255.0
			input[idx+2*stride] = float32(b>>8) / 255.0
			idx++
		}
	}
	return input
}

// decodeBoxes converts the model's flat [4+C]xN output into candidate
// detections above the confidence threshold. Centers and extents are scaled
// from model space back to source pixels and clamped to the image bounds.
func decodeBoxes(output []float32, classes []string, imageSize, srcW, srcH int, conf float32) []Detection {
	var boxes []Detection

	numClasses := len(classes)
	if numClasses == 0 || len(output) == 0 {
		return boxes
	}
	boxesPerCell := len(output) / (numClasses + 4)
	if boxesPerCell == 0 || len(output) != boxesPerCell*(numClasses+4) {
		log.Errorf("Unexpected output size: got %d values for %d classes", len(output), numClasses)
		return boxes
	}

	size := float32(imageSize)
	maxX, maxY := float32(srcW), float32(srcH)

	for i := 0; i < boxesPerCell; i++ {
		classID, prob := 0, float32(0.0)
		for j := 0; j < numClasses; j++ {
			if curr := output[boxesPerCell*(j+4)+i]; curr > prob {
				prob = curr
				classID = j
			}
		}
		if prob < conf {
			continue
		}

		xc := output[i]
		yc := output[boxesPerCell+i]
		w := output[2*boxesPerCell+i]
		h := output[3*boxesPerCell+i]

		boxes = append(boxes, Detection{
			Class:      classes[classID],
			Confidence: prob,
			BBox: BBox{
				X1: clamp((xc-w/2)/size*maxX, 0, maxX),
				Y1: clamp((yc-h/2)/size*maxY, 0, maxY),
				X2: clamp((xc+w/2)/size*maxX, 0, maxX),
				Y2: clamp((yc+h/2)/size*maxY, 0, maxY),
			},
		})
	}
	return boxes
}

// applyNMS suppresses overlapping boxes, keeping the highest-confidence one
// of each cluster. The result stays sorted by confidence.
func applyNMS(boxes []Detection, iouThreshold float32) []Detection {
	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	var kept []Detection
	selected := make([]bool, len(boxes))
	for i := 0; i < len(boxes); i++ {
		if selected[i] {
			continue
		}
		kept = append(kept, boxes[i])
		selected[i] = true
		for j := i + 1; j < len(boxes); j++ {
			if selected[j] {
				continue
			}
			if iou(boxes[i].BBox, boxes[j].BBox) > iouThreshold {
				selected[j] = true
			}
		}
	}
	return kept
}

func iou(a, b BBox) float32 {
	x1 := max(a.X1, b.X1)
	y1 := max(a.Y1, b.Y1)
	x2 := min(a.X2, b.X2)
	y2 := min(a.Y2, b.Y2)

	inter := max(0, x2-x1) * max(0, y2-y1)
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b BBox) float32 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

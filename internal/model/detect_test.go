package model

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// makeOutput builds a flat [4+numClasses]xboxesPerCell output tensor, zeroed.
func makeOutput(numClasses, boxesPerCell int) []float32 {
	return make([]float32, (4+numClasses)*boxesPerCell)
}

// setBox writes one candidate box (model-space center format) at anchor i.
func setBox(output []float32, boxesPerCell, i int, xc, yc, w, h float32, classScores ...float32) {
	output[i] = xc
	output[boxesPerCell+i] = yc
	output[2*boxesPerCell+i] = w
	output[3*boxesPerCell+i] = h
	for j, s := range classScores {
		output[(4+j)*boxesPerCell+i] = s
	}
}

var testClasses = []string{"P.102", "W.224", "Camera"}

func TestDecodeBoxesScalesToSource(t *testing.T) {
	output := makeOutput(3, 8400)
	setBox(output, 8400, 0, 320, 240, 160, 120, 0.1, 0.9, 0)

	boxes := decodeBoxes(output, testClasses, 640, 1280, 960, 0.25)

	if len(boxes) != 1 {
		t.Fatalf("Expected 1 box, got %d", len(boxes))
	}
	det := boxes[0]
	if det.Class != "W.224" {
		t.Errorf("Expected class W.224, got %s", det.Class)
	}
	if det.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", det.Confidence)
	}
	want := BBox{X1: 480, Y1: 270, X2: 800, Y2: 450}
	if det.BBox != want {
		t.Errorf("Expected bbox %+v, got %+v", want, det.BBox)
	}
}

func TestDecodeBoxesConfidenceFilter(t *testing.T) {
	output := makeOutput(3, 100)
	setBox(output, 100, 0, 320, 240, 100, 100, 0.2, 0, 0)
	setBox(output, 100, 1, 100, 100, 50, 50, 0, 0.25, 0)

	boxes := decodeBoxes(output, testClasses, 640, 640, 640, 0.25)

	if len(boxes) != 1 {
		t.Fatalf("Expected only the box at the threshold to pass, got %d boxes", len(boxes))
	}
	if boxes[0].Confidence != 0.25 {
		t.Errorf("Expected confidence 0.25, got %f", boxes[0].Confidence)
	}
}

func TestDecodeBoxesPicksArgmax(t *testing.T) {
	output := makeOutput(3, 10)
	setBox(output, 10, 3, 320, 320, 64, 64, 0.3, 0.8, 0.5)

	boxes := decodeBoxes(output, testClasses, 640, 640, 640, 0.25)

	if len(boxes) != 1 {
		t.Fatalf("Expected 1 box, got %d", len(boxes))
	}
	if boxes[0].Class != "W.224" {
		t.Errorf("Expected highest-scoring class W.224, got %s", boxes[0].Class)
	}
}

func TestDecodeBoxesClampsToBounds(t *testing.T) {
	output := makeOutput(3, 10)
	setBox(output, 10, 0, 10, 320, 100, 100, 0.9, 0, 0)
	setBox(output, 10, 1, 630, 320, 100, 100, 0.9, 0, 0)

	boxes := decodeBoxes(output, testClasses, 640, 1280, 960, 0.25)

	if len(boxes) != 2 {
		t.Fatalf("Expected 2 boxes, got %d", len(boxes))
	}
	for _, det := range boxes {
		b := det.BBox
		if b.X1 < 0 || b.Y1 < 0 || b.X2 > 1280 || b.Y2 > 960 {
			t.Errorf("Box not clamped to image bounds: %+v", b)
		}
		if b.X1 > b.X2 || b.Y1 > b.Y2 {
			t.Errorf("Box corners out of order: %+v", b)
		}
	}
	if boxes[0].BBox.X1 != 0 {
		t.Errorf("Left overflow should clamp to 0, got %f", boxes[0].BBox.X1)
	}
	if boxes[1].BBox.X2 != 1280 {
		t.Errorf("Right overflow should clamp to 1280, got %f", boxes[1].BBox.X2)
	}
}

func TestDecodeBoxesRejectsMalformedOutput(t *testing.T) {
	output := make([]float32, 100) // not divisible by 4+3 classes

	boxes := decodeBoxes(output, testClasses, 640, 640, 640, 0.25)

	if len(boxes) != 0 {
		t.Errorf("Expected no boxes from malformed output, got %d", len(boxes))
	}
}

func TestDecodeBoxesZeroConfKeepsAll(t *testing.T) {
	output := makeOutput(3, 10)
	setBox(output, 10, 0, 320, 320, 64, 64, 0.9, 0, 0)

	boxes := decodeBoxes(output, testClasses, 640, 640, 640, 0)

	if len(boxes) != 10 {
		t.Errorf("Zero threshold should keep every anchor, got %d of 10", len(boxes))
	}
}

func TestDecodeBoxesEmptyClasses(t *testing.T) {
	output := makeOutput(3, 10)
	setBox(output, 10, 0, 320, 320, 64, 64, 0.9, 0, 0)

	boxes := decodeBoxes(output, nil, 640, 640, 640, 0.25)

	if len(boxes) != 0 {
		t.Errorf("Expected no boxes without a class table, got %d", len(boxes))
	}
}

func TestApplyNMSSuppressesOverlaps(t *testing.T) {
	boxes := []Detection{
		{Class: "A", Confidence: 0.8, BBox: BBox{X1: 10, Y1: 10, X2: 110, Y2: 110}},
		{Class: "B", Confidence: 0.9, BBox: BBox{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		{Class: "C", Confidence: 0.7, BBox: BBox{X1: 200, Y1: 200, X2: 300, Y2: 300}},
	}

	kept := applyNMS(boxes, 0.45)

	if len(kept) != 2 {
		t.Fatalf("Expected 2 boxes after NMS, got %d", len(kept))
	}
	if kept[0].Class != "B" || kept[1].Class != "C" {
		t.Errorf("Expected [B C] in confidence order, got [%s %s]", kept[0].Class, kept[1].Class)
	}
}

func TestApplyNMSKeepsBoxesBelowThreshold(t *testing.T) {
	// IoU of these two boxes is ~0.68, below a 0.7 threshold.
	boxes := []Detection{
		{Class: "A", Confidence: 0.9, BBox: BBox{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		{Class: "B", Confidence: 0.8, BBox: BBox{X1: 10, Y1: 10, X2: 110, Y2: 110}},
	}

	kept := applyNMS(boxes, 0.7)

	if len(kept) != 2 {
		t.Fatalf("Expected both boxes kept, got %d", len(kept))
	}
}

func TestApplyNMSOrdersByConfidence(t *testing.T) {
	boxes := []Detection{
		{Class: "low", Confidence: 0.3, BBox: BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{Class: "high", Confidence: 0.9, BBox: BBox{X1: 100, Y1: 100, X2: 110, Y2: 110}},
		{Class: "mid", Confidence: 0.6, BBox: BBox{X1: 200, Y1: 200, X2: 210, Y2: 210}},
	}

	kept := applyNMS(boxes, 0.45)

	if len(kept) != 3 {
		t.Fatalf("Expected 3 disjoint boxes kept, got %d", len(kept))
	}
	for i := 1; i < len(kept); i++ {
		if kept[i].Confidence > kept[i-1].Confidence {
			t.Errorf("Boxes not in descending confidence order: %f before %f",
				kept[i-1].Confidence, kept[i].Confidence)
		}
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b BBox
		want float32
	}{
		{"identical", BBox{0, 0, 100, 100}, BBox{0, 0, 100, 100}, 1.0},
		{"disjoint", BBox{0, 0, 100, 100}, BBox{200, 200, 300, 300}, 0.0},
		{"half overlap", BBox{0, 0, 100, 100}, BBox{50, 0, 150, 100}, 1.0 / 3.0},
		{"zero area", BBox{0, 0, 0, 0}, BBox{0, 0, 0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("iou(%+v, %+v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPrepareInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	input := prepareInput(img, 4)

	if len(input) != 3*4*4 {
		t.Fatalf("Expected %d values, got %d", 3*4*4, len(input))
	}
	stride := 4 * 4
	for i := 0; i < stride; i++ {
		if math.Abs(float64(input[i]-1.0)) > 0.02 {
			t.Fatalf("Red plane value %d = %f, want ~1.0", i, input[i])
		}
		if math.Abs(float64(input[stride+i])) > 0.02 {
			t.Fatalf("Green plane value %d = %f, want ~0.0", i, input[stride+i])
		}
		if math.Abs(float64(input[2*stride+i])) > 0.02 {
			t.Fatalf("Blue plane value %d = %f, want ~0.0", i, input[2*stride+i])
		}
	}
}

func TestDetectOptionsDefaults(t *testing.T) {
	opts := DetectOptions{}.withDefaults()

	if opts.Format != DefaultFormat {
		t.Errorf("Expected default format %s, got %s", DefaultFormat, opts.Format)
	}
	if opts.Conf != 0 || opts.IoU != 0 {
		t.Errorf("Thresholds must pass through unchanged, got conf=%f iou=%f", opts.Conf, opts.IoU)
	}

	set := DetectOptions{Conf: 0.5, IoU: 0.3, Format: "png"}.withDefaults()
	if set.Conf != 0.5 || set.IoU != 0.3 || set.Format != "png" {
		t.Errorf("Explicit options should be preserved, got %+v", set)
	}
}

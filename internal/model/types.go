package model

// Metadata describes the exported ONNX model. It is generated alongside the
// weights file during export and must match the model's actual tensor shapes.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// ClassMapping translates short detector class codes (e.g. "W.224") into
// human-readable descriptions. Read-only after load.
type ClassMapping map[string]string

// BBox is an axis-aligned box in source-image pixels, x1<=x2 and y1<=y2.
type BBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Detection is one predicted object instance.
type Detection struct {
	Index      int     `json:"index"`
	Class      string  `json:"class"`
	ClassName  string  `json:"class_name,omitempty"`
	Confidence float32 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// DetectionBatch holds everything one inference call produced: the kept
// detections in confidence order and the annotated source image.
type DetectionBatch struct {
	Detections []Detection
	Annotated  []byte
}

// DetectOptions tunes a single detection call. Conf and IoU are applied
// exactly as given (a zero Conf keeps every candidate box); an empty Format
// falls back to DefaultFormat. Callers that accept thresholds from user input
// supply DefaultConf/DefaultIoU themselves when a value is absent.
type DetectOptions struct {
	Conf    float32
	IoU     float32
	Format  string
	Mapping ClassMapping
}

const (
	DefaultConf   = 0.25
	DefaultIoU    = 0.45
	DefaultFormat = "jpeg"
)

func (o DetectOptions) withDefaults() DetectOptions {
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	return o
}

package vision

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// ImageNet normalization (standard for torchvision models).
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const (
	inputWidth  = 224
	inputHeight = 224
)

// ONNXDescriber runs a local image classifier and phrases its top labels as
// a short Swedish description. It is a cheap offline alternative to the LLM
// describer: no image bytes ever leave the process.
type ONNXDescriber struct {
	mu sync.Mutex

	modelPath  string
	labelsPath string
	libPath    string
	topK       int

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  []string
	inited  bool
}

func NewONNXDescriber(modelPath, labelsPath, onnxLibPath string, topK int) *ONNXDescriber {
	if topK <= 0 {
		topK = 3
	}
	return &ONNXDescriber{
		modelPath:  modelPath,
		labelsPath: labelsPath,
		libPath:    onnxLibPath,
		topK:       topK,
	}
}

func (d *ONNXDescriber) Enabled() bool {
	return d != nil && d.modelPath != "" && d.labelsPath != ""
}

func (d *ONNXDescriber) Describe(_ context.Context, imageData []byte) (string, error) {
	labels, err := d.classify(imageData)
	if err != nil {
		return DescriptionUnavailable, nil
	}
	if len(labels) == 0 {
		return DescriptionUnavailable, nil
	}
	return "Bilden visar sannolikt: " + strings.Join(labels, ", ") + ".", nil
}

func (d *ONNXDescriber) classify(imageData []byte) ([]string, error) {
	if err := d.initOnce(); err != nil {
		return nil, err
	}
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	inputData := preprocess(img)

	d.mu.Lock()
	inData := d.input.GetData()
	if len(inData) < len(inputData) {
		d.mu.Unlock()
		return nil, fmt.Errorf("input tensor size %d < preprocessed %d", len(inData), len(inputData))
	}
	copy(inData, inputData)
	err = d.session.Run()
	outData := append([]float32(nil), d.output.GetData()...)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	type idxScore struct {
		idx   int
		score float32
	}
	scored := make([]idxScore, len(outData))
	for i, s := range outData {
		scored[i] = idxScore{i, s}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	k := d.topK
	if k > len(scored) {
		k = len(scored)
	}
	labels := make([]string, 0, k)
	for i := 0; i < k; i++ {
		if scored[i].idx < len(d.labels) {
			labels = append(labels, d.labels[scored[i].idx])
		}
	}
	return labels, nil
}

func (d *ONNXDescriber) initOnce() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inited {
		return nil
	}
	if d.libPath != "" {
		ort.SetSharedLibraryPath(d.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	labels, err := loadLabels(d.labelsPath)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	d.labels = labels

	inputs, outputs, err := ort.GetInputOutputInfo(d.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputs[0].Dimensions)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputs[0].Dimensions)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := make([]string, len(outputs))
	for i := range outputs {
		outputNames[i] = outputs[i].Name
	}

	session, err := ort.NewAdvancedSession(d.modelPath, inputNames, outputNames,
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	d.input = inputTensor
	d.output = outputTensor
	d.session = session
	d.inited = true
	return nil
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if img, jerr := jpeg.Decode(bytes.NewReader(data)); jerr == nil {
		return img, nil
	}
	if img, perr := png.Decode(bytes.NewReader(data)); perr == nil {
		return img, nil
	}
	return nil, err
}

// preprocess resizes to 224x224 RGB and produces the NCHW float32 tensor
// with ImageNet normalization.
func preprocess(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, inputWidth, inputHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]float32, 3*inputHeight*inputWidth)
	const size = inputWidth * inputHeight
	for y := 0; y < inputHeight; y++ {
		for x := 0; x < inputWidth; x++ {
			idx := y*inputWidth + x
			c := dst.RGBAAt(x, y)
			r, g, b := float32(c.R)/255.0, float32(c.G)/255.0, float32(c.B)/255.0
			out[0*size+idx] = (r - imagenetMean[0]) / imagenetStd[0]
			out[1*size+idx] = (g - imagenetMean[1]) / imagenetStd[1]
			out[2*size+idx] = (b - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}

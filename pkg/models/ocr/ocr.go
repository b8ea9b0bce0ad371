// Package ocr implements greedy decoding for the ViT-encoder /
// transformer-decoder text recognizer: one encoder pass per text block
// crop, then an autoregressive decode loop with cross-attention into the
// encoder output, stopping at EOS or a maximum length.
package ocr

import (
	"image"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/tensor"
)

const (
	patchSize  = 16
	maxDecode  = 64
	eosTokenID = 0
)

// EncoderWeights is the ViT front end: patch embedding plus a self-attention
// + FFN stack.
type EncoderWeights struct {
	PatchWeight *tensor.Tensor
	PatchBias   []float32
	PosEmbed    *tensor.Tensor // (numPatches, embedDim)
	Q, K, V, O  *tensor.Tensor // (embedDim, embedDim) projection weights
	FFN1, FFN2  *tensor.Tensor
	FFN1Bias    []float32
	FFN2Bias    []float32
	NormWeight  []float32
	NormBias    []float32
}

// DecoderWeights is the autoregressive text decoder: token embedding,
// self-attention over generated tokens, cross-attention into the encoder
// memory, and an output projection over the vocabulary.
type DecoderWeights struct {
	TokEmbed    *tensor.Tensor // (vocab, embedDim)
	SelfQ, SelfK, SelfV, SelfO *tensor.Tensor
	CrossQ, CrossK, CrossV, CrossO *tensor.Tensor
	FFN1, FFN2  *tensor.Tensor
	FFN1Bias    []float32
	FFN2Bias    []float32
	OutProj     *tensor.Tensor // (embedDim, vocab)
	OutBias     []float32
}

// Weights bundles the encoder, decoder, and the vocabulary's id->rune table.
type Weights struct {
	Encoder EncoderWeights
	Decoder DecoderWeights
	Vocab   []rune
}

// Model runs OCR over detected text block crops.
type Model struct {
	Weights Weights
}

func New(w Weights) *Model { return &Model{Weights: w} }

// OCR recognizes text for every block in doc, replacing any earlier text.
func (m *Model) OCR(doc *document.Document) error {
	if doc.Image == nil {
		return kerr.New(kerr.BadInput, "ocr: document has no source image")
	}
	for i := range doc.TextBlocks {
		b := &doc.TextBlocks[i]
		crop := cropBlock(doc.Image, *b)
		text, err := m.recognize(crop)
		if err != nil {
			return err
		}
		text = normalizeText(text)
		b.Text = &text
	}
	return nil
}

func cropBlock(img image.Image, b document.TextBlock) image.Image {
	r := image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

func (m *Model) recognize(crop image.Image) (string, error) {
	enc, err := m.encode(crop)
	if err != nil {
		return "", kerr.Wrap(kerr.BackendFailure, "ocr: encode", err)
	}

	ids := []int{}
	var sb strings.Builder
	for step := 0; step < maxDecode; step++ {
		logits, err := m.decodeStep(ids, enc)
		if err != nil {
			return "", kerr.Wrap(kerr.BackendFailure, "ocr: decode", err)
		}
		next := argmax(logits)
		if next == eosTokenID {
			break
		}
		ids = append(ids, next)
		if next < len(m.Weights.Vocab) {
			sb.WriteRune(m.Weights.Vocab[next])
		}
	}
	return sb.String(), nil
}

func (m *Model) encode(crop image.Image) (*tensor.Tensor, error) {
	b := crop.Bounds()
	gh, gw := b.Dy()/patchSize, b.Dx()/patchSize
	if gh == 0 || gw == 0 {
		gh, gw = 1, 1
	}
	in := imageToPlanes(crop, gh*patchSize, gw*patchSize)

	x, err := nn.PatchEmbed(m.Weights.Encoder.PatchWeight, m.Weights.Encoder.PatchBias, in, patchSize)
	if err != nil {
		return nil, err
	}
	if m.Weights.Encoder.PosEmbed != nil {
		x, err = tensor.Add(x, m.Weights.Encoder.PosEmbed)
		if err != nil {
			return nil, err
		}
	}

	q, err := tensor.MatMul(x, m.Weights.Encoder.Q)
	if err != nil {
		return nil, err
	}
	k, err := tensor.MatMul(x, m.Weights.Encoder.K)
	if err != nil {
		return nil, err
	}
	v, err := tensor.MatMul(x, m.Weights.Encoder.V)
	if err != nil {
		return nil, err
	}
	attn, err := nn.ScaledDotProductAttention(q, k, v, false, 0)
	if err != nil {
		return nil, err
	}
	attn, err = tensor.MatMul(attn, m.Weights.Encoder.O)
	if err != nil {
		return nil, err
	}
	x, err = tensor.Add(x, attn)
	if err != nil {
		return nil, err
	}

	ff, err := tensor.MatMul(x, m.Weights.Encoder.FFN1)
	if err != nil {
		return nil, err
	}
	ff = addBias(ff, m.Weights.Encoder.FFN1Bias)
	ff = tensor.Gelu(ff)
	ff, err = tensor.MatMul(ff, m.Weights.Encoder.FFN2)
	if err != nil {
		return nil, err
	}
	ff = addBias(ff, m.Weights.Encoder.FFN2Bias)
	x, err = tensor.Add(x, ff)
	if err != nil {
		return nil, err
	}
	if m.Weights.Encoder.NormWeight != nil {
		return nn.LayerNorm(x, m.Weights.Encoder.NormWeight, m.Weights.Encoder.NormBias, 1e-5)
	}
	return x, nil
}

func (m *Model) decodeStep(ids []int, memory *tensor.Tensor) ([]float32, error) {
	d := m.Weights.Decoder
	seq := len(ids) + 1 // +1 for the implicit BOS at position 0
	embedDim := d.TokEmbed.Shape[1]
	tok := tensor.New(seq, embedDim)
	for s := 0; s < seq-1; s++ {
		copy(tok.Data[s*embedDim:(s+1)*embedDim], d.TokEmbed.Data[ids[s]*embedDim:(ids[s]+1)*embedDim])
	}
	// position seq-1 is the query for the next token; reuse embedding 0 (BOS) as seed.
	copy(tok.Data[(seq-1)*embedDim:seq*embedDim], d.TokEmbed.Data[0:embedDim])

	q, err := tensor.MatMul(tok, d.SelfQ)
	if err != nil {
		return nil, err
	}
	k, err := tensor.MatMul(tok, d.SelfK)
	if err != nil {
		return nil, err
	}
	v, err := tensor.MatMul(tok, d.SelfV)
	if err != nil {
		return nil, err
	}
	self, err := nn.ScaledDotProductAttention(q, k, v, true, 0)
	if err != nil {
		return nil, err
	}
	self, err = tensor.MatMul(self, d.SelfO)
	if err != nil {
		return nil, err
	}
	x, err := tensor.Add(tok, self)
	if err != nil {
		return nil, err
	}

	cq, err := tensor.MatMul(x, d.CrossQ)
	if err != nil {
		return nil, err
	}
	ck, err := tensor.MatMul(memory, d.CrossK)
	if err != nil {
		return nil, err
	}
	cv, err := tensor.MatMul(memory, d.CrossV)
	if err != nil {
		return nil, err
	}
	cross, err := nn.ScaledDotProductAttention(cq, ck, cv, false, 0)
	if err != nil {
		return nil, err
	}
	cross, err = tensor.MatMul(cross, d.CrossO)
	if err != nil {
		return nil, err
	}
	x, err = tensor.Add(x, cross)
	if err != nil {
		return nil, err
	}

	ff, err := tensor.MatMul(x, d.FFN1)
	if err != nil {
		return nil, err
	}
	ff = addBias(ff, d.FFN1Bias)
	ff = tensor.Gelu(ff)
	ff, err = tensor.MatMul(ff, d.FFN2)
	if err != nil {
		return nil, err
	}
	ff = addBias(ff, d.FFN2Bias)
	x, err = tensor.Add(x, ff)
	if err != nil {
		return nil, err
	}

	last := x.Data[(seq-1)*embedDim : seq*embedDim]
	lastTensor := &tensor.Tensor{Shape: []int{1, embedDim}, Data: append([]float32(nil), last...)}
	logits, err := tensor.MatMul(lastTensor, d.OutProj)
	if err != nil {
		return nil, err
	}
	out := addBias(logits, d.OutBias)
	return out.Data, nil
}

func addBias(t *tensor.Tensor, bias []float32) *tensor.Tensor {
	if bias == nil {
		return t
	}
	last := t.Shape[len(t.Shape)-1]
	out := t.Clone()
	rows := t.Numel() / last
	for r := 0; r < rows; r++ {
		base := r * last
		for i := 0; i < last; i++ {
			out.Data[base+i] += bias[i]
		}
	}
	return out
}

func argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}

func imageToPlanes(img image.Image, h, w int) *tensor.Tensor {
	b := img.Bounds()
	out := tensor.New(3, h, w)
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y
		if sy >= b.Max.Y {
			sy = b.Max.Y - 1
		}
		for x := 0; x < w; x++ {
			sx := b.Min.X + x
			if sx >= b.Max.X {
				sx = b.Max.X - 1
			}
			r, g, bl, _ := img.At(sx, sy).RGBA()
			i := y*w + x
			out.Data[0*h*w+i] = float32(r) / 65535.0
			out.Data[1*h*w+i] = float32(g) / 65535.0
			out.Data[2*h*w+i] = float32(bl) / 65535.0
		}
	}
	return out
}

// normalizeText maps half-width katakana/ascii to full-width (+0xFEE0) and
// collapses runs of '.' into a single ellipsis, grouping by grapheme
// cluster so combining marks survive the collapse.
func normalizeText(s string) string {
	var sb strings.Builder
	gr := uniseg.NewGraphemes(s)
	dotRun := 0
	for gr.Next() {
		cluster := gr.Str()
		if cluster == "." {
			dotRun++
			continue
		}
		if dotRun > 0 {
			sb.WriteRune('…')
			dotRun = 0
		}
		for _, r := range cluster {
			if r >= 0x21 && r <= 0x7E {
				sb.WriteRune(r + 0xFEE0)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	if dotRun > 0 {
		sb.WriteRune('…')
	}
	return sb.String()
}

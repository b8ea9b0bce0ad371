package llm

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/ops"
	"github.com/koharu-go/koharu/pkg/tensor"
)

// GenerateOptions controls sampling for one generation call.
type GenerateOptions struct {
	MaxTokens      int
	Temperature    float64
	TopK           int // 0 disables
	TopP           float64
	Seed           uint64
	RepeatPenalty  float32
	RepeatLastN    int
}

// DefaultGenerateOptions mirrors the reference wrapper's defaults, tuned
// for short in-panel translations rather than long-form chat.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		MaxTokens:     256,
		Temperature:   0.8,
		RepeatPenalty: 1.1,
		RepeatLastN:   64,
		Seed:          299792458,
	}
}

// Weights is the minimal set of per-layer tensors a quantized chat model
// exposes; actual values are populated from a parsed GGUF file.
type Weights struct {
	TokEmbeddings *nn.QMatMulWeights
	OutputNorm    []float32
	Output        *nn.QMatMulWeights
	Layers        []LayerWeights
	HeadDim       int
	NumLayers     int
	EOSToken      uint32
	VocabSize     int
}

// LayerWeights is one transformer block's attention + feed-forward weights.
type LayerWeights struct {
	AttnNorm []float32
	WQ, WK, WV, WO *nn.QMatMulWeights
	FFNNorm  []float32
	W1, W2, W3 *nn.QMatMulWeights
}

// Tokenizer turns text into token ids and back. The real binding loads a
// GGUF-embedded BPE vocabulary; this interface lets the model wrapper stay
// agnostic of tokenizer representation.
type Tokenizer interface {
	Encode(text string) []uint32
	Decode(ids []uint32) string
}

// Model is one loaded quantized chat model ready for incremental decoding.
type Model struct {
	ID        ModelID
	Family    Family
	Weights   *Weights
	Tokenizer Tokenizer
}

// Forward runs one decoding step for the given token ids starting at
// cache position pos, returning logits over the vocabulary for the last
// position.
func (m *Model) Forward(ids []uint32, cache *nn.KVCache) (*tensor.Tensor, error) {
	seq := len(ids)
	hidden := tensor.New(seq, m.Weights.HeadDim*numHeadsFor(m.Weights))
	embedTok(hidden, m.Weights.TokEmbeddings, ids)

	cos, sin := nn.RoPEFreqs(m.Weights.HeadDim, 8192, 10000)
	pos := cache.SeqLen(0)

	x := hidden
	for li, layer := range m.Weights.Layers {
		normed, err := nn.RmsNorm(x, layer.AttnNorm, 1e-5)
		if err != nil {
			return nil, err
		}
		q, err := nn.QMatMul(layer.WQ, normed)
		if err != nil {
			return nil, err
		}
		k, err := nn.QMatMul(layer.WK, normed)
		if err != nil {
			return nil, err
		}
		v, err := nn.QMatMul(layer.WV, normed)
		if err != nil {
			return nil, err
		}
		nn.ApplyRoPE(q, cos, sin, m.Weights.HeadDim, pos)
		nn.ApplyRoPE(k, cos, sin, m.Weights.HeadDim, pos)
		k, v, err = cache.Append(li, k, v)
		if err != nil {
			return nil, err
		}
		attnOut, err := nn.ScaledDotProductAttention(q, k, v, true, pos)
		if err != nil {
			return nil, err
		}
		o, err := nn.QMatMul(layer.WO, attnOut)
		if err != nil {
			return nil, err
		}
		x, err = tensor.Add(x, o)
		if err != nil {
			return nil, err
		}

		ffnNormed, err := nn.RmsNorm(x, layer.FFNNorm, 1e-5)
		if err != nil {
			return nil, err
		}
		gate, err := nn.QMatMul(layer.W1, ffnNormed)
		if err != nil {
			return nil, err
		}
		up, err := nn.QMatMul(layer.W3, ffnNormed)
		if err != nil {
			return nil, err
		}
		gate = tensor.Silu(gate)
		mixed, err := tensor.Mul(gate, up)
		if err != nil {
			return nil, err
		}
		down, err := nn.QMatMul(layer.W2, mixed)
		if err != nil {
			return nil, err
		}
		x, err = tensor.Add(x, down)
		if err != nil {
			return nil, err
		}
	}

	normed, err := nn.RmsNorm(x, m.Weights.OutputNorm, 1e-5)
	if err != nil {
		return nil, err
	}
	return nn.QMatMul(m.Weights.Output, normed)
}

func numHeadsFor(w *Weights) int {
	if w.HeadDim == 0 {
		return 1
	}
	return w.TokEmbeddings.InDim / w.HeadDim
}

func embedTok(out *tensor.Tensor, emb *nn.QMatMulWeights, ids []uint32) {
	// Embedding lookup is a gather, not a matmul; implemented directly
	// against the dequantized row for each id.
	dim := emb.InDim
	for s, id := range ids {
		scale := emb.Scales[id]
		base := int(id) * dim
		for d := 0; d < dim; d++ {
			out.Data[s*dim+d] = float32(emb.Quant[base+d]) * scale
		}
	}
}

// sampleNext applies temperature/top-k/top-p/repeat-penalty sampling to
// one position's logits, matching the reference generation loop: T<=0
// means greedy argmax.
func sampleNext(logits []float32, history []uint32, opt GenerateOptions, rng *rand.Rand) uint32 {
	adjusted := append([]float32(nil), logits...)
	if opt.RepeatPenalty != 1.0 && len(history) > 0 {
		start := 0
		if len(history) > opt.RepeatLastN {
			start = len(history) - opt.RepeatLastN
		}
		seen := make(map[uint32]bool)
		for _, id := range history[start:] {
			seen[id] = true
		}
		for id := range seen {
			if int(id) >= len(adjusted) {
				continue
			}
			if adjusted[id] > 0 {
				adjusted[id] /= opt.RepeatPenalty
			} else {
				adjusted[id] *= opt.RepeatPenalty
			}
		}
	}

	if opt.Temperature <= 0 {
		best := 0
		for i, v := range adjusted {
			if v > adjusted[best] {
				best = i
			}
		}
		return uint32(best)
	}

	probs := make([]float64, len(adjusted))
	var maxLogit float32 = adjusted[0]
	for _, v := range adjusted {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	for i, v := range adjusted {
		p := math.Exp(float64(v-maxLogit) / opt.Temperature)
		probs[i] = p
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}

	if opt.TopK > 0 && opt.TopK < len(probs) {
		probs = topK(probs, opt.TopK)
	}
	if opt.TopP > 0 && opt.TopP < 1 {
		probs = topP(probs, opt.TopP)
	}

	r := rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if r <= cum {
			return uint32(i)
		}
	}
	return uint32(len(probs) - 1)
}

func topK(probs []float64, k int) []float64 {
	type kv struct {
		i int
		p float64
	}
	idx := make([]kv, len(probs))
	for i, p := range probs {
		idx[i] = kv{i, p}
	}
	sortDesc(idx)
	out := make([]float64, len(probs))
	var sum float64
	for i := 0; i < k; i++ {
		out[idx[i].i] = idx[i].p
		sum += idx[i].p
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

func topP(probs []float64, p float64) []float64 {
	type kv struct {
		i int
		p float64
	}
	idx := make([]kv, len(probs))
	for i, v := range probs {
		idx[i] = kv{i, v}
	}
	sortDesc(idx)
	out := make([]float64, len(probs))
	var cum float64
	for _, e := range idx {
		if cum >= p {
			break
		}
		out[e.i] = e.p
		cum += e.p
	}
	var sum float64
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

func sortDesc(idx []struct {
	i int
	p float64
}) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && idx[j].p > idx[j-1].p; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

// Loader resolves a ModelID to a ready-to-run Model, typically backed by
// pkg/assets for weight provisioning.
type Loader interface {
	Load(ctx context.Context, id ModelID) (*Model, error)
}

// Wrapper is the process-wide single-model-at-a-time translation service,
// matching the reference implementation's "load/offload, poll ready"
// contract.
type Wrapper struct {
	mu      sync.RWMutex
	loader  Loader
	cpuOnly bool
	current *Model
}

// NewWrapper constructs a Wrapper around the given loader.
func NewWrapper(loader Loader, cpuOnly bool) *Wrapper {
	return &Wrapper{loader: loader, cpuOnly: cpuOnly}
}

func (w *Wrapper) Ready(ctx context.Context) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current != nil
}

func (w *Wrapper) IsCPU() bool { return w.cpuOnly }

func (w *Wrapper) List(language string) []ops.ModelInfo {
	infos := List(language, w.cpuOnly)
	out := make([]ops.ModelInfo, len(infos))
	for i, v := range infos {
		out[i] = ops.ModelInfo{ID: v.ID, DisplayName: v.DisplayName}
	}
	return out
}

func (w *Wrapper) Load(ctx context.Context, id string) error {
	modelID, err := ParseModelID(id)
	if err != nil {
		return err
	}
	model, err := w.loader.Load(ctx, modelID)
	if err != nil {
		return kerr.Wrap(kerr.BackendFailure, "load llm", err)
	}
	w.mu.Lock()
	w.current = model
	w.mu.Unlock()
	return nil
}

func (w *Wrapper) Offload(ctx context.Context) {
	w.mu.Lock()
	w.current = nil
	w.mu.Unlock()
}

// Translate generates a translation for a single text block, or for every
// block with recognized text when blockIndex is nil.
func (w *Wrapper) Translate(ctx context.Context, doc *document.Document, blockIndex *int, language *string) error {
	w.mu.RLock()
	model := w.current
	w.mu.RUnlock()
	if model == nil {
		return kerr.New(kerr.ResourceUnavailable, "no translation model loaded")
	}

	translateOne := func(b *document.TextBlock) error {
		if b.Text == nil || strings.TrimSpace(*b.Text) == "" {
			return nil
		}
		out, err := w.generate(model, *b.Text)
		if err != nil {
			return err
		}
		b.Translation = &out
		return nil
	}

	if blockIndex != nil {
		if *blockIndex < 0 || *blockIndex >= len(doc.TextBlocks) {
			return kerr.New(kerr.NotFound, "text block not found")
		}
		return translateOne(&doc.TextBlocks[*blockIndex])
	}
	for i := range doc.TextBlocks {
		if err := translateOne(&doc.TextBlocks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wrapper) generate(model *Model, text string) (string, error) {
	msgs := promptFor(model.ID, text)
	promptText := renderChat(model.Family, msgs)
	ids := model.Tokenizer.Encode(promptText)

	opt := DefaultGenerateOptions()
	rng := rand.New(rand.NewSource(int64(opt.Seed)))
	cache := nn.NewKVCache(model.Weights.NumLayers)

	generated := append([]uint32(nil), ids...)
	for step := 0; step < opt.MaxTokens; step++ {
		var feed []uint32
		if step == 0 {
			feed = ids
		} else {
			feed = generated[len(generated)-1:]
		}
		logits, err := model.Forward(feed, cache)
		if err != nil {
			return "", err
		}
		last := logits.Data[(logits.Shape[0]-1)*logits.Shape[1]:]
		next := sampleNext(last, generated, opt, rng)
		if next == model.Weights.EOSToken {
			break
		}
		generated = append(generated, next)
	}
	return model.Tokenizer.Decode(generated[len(ids):]), nil
}

type chatMessage struct {
	role    string
	content string
}

func promptFor(id ModelID, text string) []chatMessage {
	switch id {
	case VntlLlama3_8Bv2:
		return []chatMessage{{role: "Japanese", content: text}, {role: "English", content: ""}}
	default:
		return []chatMessage{
			{role: "system", content: "Translate the following visual novel dialogue faithfully, preserving tone and honorifics."},
			{role: "user", content: text},
			{role: "assistant", content: ""},
		}
	}
}

func renderChat(family Family, msgs []chatMessage) string {
	mk := markersFor(family)
	var b strings.Builder
	b.WriteString(mk.Prefix)
	for _, m := range msgs {
		if mk.RoleStart != "" {
			b.WriteString(mk.RoleStart)
			b.WriteString(m.role)
			if mk.RoleEnd != "" {
				b.WriteString(mk.RoleEnd)
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(m.content)
		b.WriteString(mk.MessageEnd)
	}
	return b.String()
}

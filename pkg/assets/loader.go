// Package assets manages content-addressed model weight files: resolving a
// model id to a local path, downloading it by byte range when missing, and
// indexing what's on disk in a small embedded store.
package assets

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/models/llm"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/pubsub"
)

// Progress is one download-progress broadcast event, bridged to the
// command plane's "download_progress" notification channel.
type Progress struct {
	Asset        string
	BytesFetched int64
	BytesTotal   int64
}

// Downloads is the process-wide download progress bus.
var Downloads = pubsub.NewBroadcaster[Progress]()

// defaultMirrorTemplates are formatted with (repo, filename) to produce a
// concrete URL; the first template to answer a HEAD probe wins.
var defaultMirrorTemplates = []string{
	"https://huggingface.co/%s/resolve/main/%s",
	"https://hf-mirror.com/%s/resolve/main/%s",
}

// Store resolves asset keys to local file paths under a content-addressed
// cache directory, downloading on demand.
type Store struct {
	Dir             string
	MirrorTemplates []string
	SegmentSize     int64
	HTTPClient      *http.Client
	Manifest        *Manifest
}

// NewStore creates a Store rooted at dir, creating it if necessary, and
// opens its badger-backed manifest index at dir/manifest.db.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "assets: create cache dir", err)
	}
	manifest, err := OpenManifest(filepath.Join(dir, "manifest.db"))
	if err != nil {
		return nil, err
	}
	return &Store{
		Dir:             dir,
		MirrorTemplates: defaultMirrorTemplates,
		SegmentSize:     DefaultSegmentSize,
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
		Manifest:        manifest,
	}, nil
}

// Path returns the local path an asset key would be cached at, whether or
// not it has been fetched yet.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, key)
}

// Ensure guarantees key is present on disk, racing HEAD probes across every
// configured mirror template and downloading in byte-range segments if it
// isn't already cached. repo/filename are substituted into each mirror
// template in that order.
func (s *Store) Ensure(ctx context.Context, key, repo, filename string) (string, error) {
	path := s.Path(key)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	urls := make([]string, len(s.MirrorTemplates))
	for i, tmpl := range s.MirrorTemplates {
		urls[i] = sprintfMirror(tmpl, repo, filename)
	}

	winner, err := raceMirrorHeads(ctx, s.HTTPClient, urls)
	if err != nil {
		return "", err
	}

	onProgress := func(fetched, total int64) {
		Downloads.Publish(Progress{Asset: key, BytesFetched: fetched, BytesTotal: total})
	}
	tmpPath := path + ".partial"
	if err := downloadSegmented(ctx, s.HTTPClient, winner.URL, tmpPath, winner.SizeBytes, s.SegmentSize, onProgress); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", kerr.Wrap(kerr.IOFailure, "assets: finalize download", err)
	}

	if s.Manifest != nil {
		_ = s.Manifest.Put(key, ManifestRecord{
			Path:      path,
			MirrorURL: winner.URL,
			SizeBytes: winner.SizeBytes,
		})
	}
	return path, nil
}

func sprintfMirror(tmpl, repo, filename string) string {
	out := strings.Replace(tmpl, "%s", repo, 1)
	return strings.Replace(out, "%s", filename, 1)
}

// LLMLoader resolves a ModelID to cached GGUF weight bytes, provisioning
// them through the Store if missing, and builds a runnable llm.Model by
// parsing the GGUF tensors directly.
type LLMLoader struct {
	Store *Store
}

func NewLLMLoader(store *Store) *LLMLoader { return &LLMLoader{Store: store} }

// Prefetch downloads (but does not parse) the GGUF weights for id,
// returning the cached local path. Used by the -download startup flag to
// warm the cache without paying the memory cost of loading every model.
func (l *LLMLoader) Prefetch(ctx context.Context, id llm.ModelID) (string, error) {
	cfg, ok := llmConfigs[id]
	if !ok {
		return "", kerr.New(kerr.NotFound, "unknown model id: "+id.String())
	}
	return l.Store.Ensure(ctx, id.String()+".gguf", cfg.Repo, cfg.Filename)
}

func (l *LLMLoader) Load(ctx context.Context, id llm.ModelID) (*llm.Model, error) {
	cfg, ok := llmConfigs[id]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "unknown model id: "+id.String())
	}

	path, err := l.Store.Ensure(ctx, id.String()+".gguf", cfg.Repo, cfg.Filename)
	if err != nil {
		return nil, err
	}

	gg, err := OpenGGUF(path)
	if err != nil {
		return nil, err
	}

	tokenizer, err := newGGUFTokenizer(gg)
	if err != nil {
		return nil, err
	}

	weights, err := buildWeights(gg)
	if err != nil {
		return nil, err
	}

	return &llm.Model{ID: id, Family: cfg.Family, Weights: weights, Tokenizer: tokenizer}, nil
}

// llmConfig mirrors the catalogue entry shape llm.catalogue.go keeps
// unexported; the loader needs the repo/filename pair to fetch from, so it
// keeps its own small copy keyed the same way.
type llmConfig struct {
	Repo, Filename string
	Family         llm.Family
}

var llmConfigs = map[llm.ModelID]llmConfig{
	llm.VntlLlama3_8Bv2:          {Repo: "lmg-anon/vntl-llama3-8b-v2-gguf", Filename: "vntl-llama3-8b-v2-hf-q8_0.gguf", Family: llm.FamilyLlama},
	llm.Lfm2_350mEnjpMt:          {Repo: "LiquidAI/LFM2-350M-ENJP-MT-GGUF", Filename: "LFM2-350M-ENJP-MT-Q8_0.gguf", Family: llm.FamilyLFM2},
	llm.SakuraGalTransl7Bv3_7:    {Repo: "SakuraLLM/Sakura-GalTransl-7B-v3.7", Filename: "Sakura-Galtransl-7B-v3.7.gguf", Family: llm.FamilyQwen2},
	llm.Sakura1_5bQwen2_5v1_0:    {Repo: "SakuraLLM/Sakura-1.5B-Qwen2.5-v1.0-GGUF", Filename: "sakura-1.5b-qwen2.5-v1.0-q6k.gguf", Family: llm.FamilyQwen2},
	llm.HunyuanMT7B:              {Repo: "tencent/Hunyuan-MT-7B-GGUF", Filename: "hunyuan-mt-7b-q8_0.gguf", Family: llm.FamilyQwen2},
}

// buildWeights reads the tensors a llama.cpp-convention GGUF file stores
// for a decoder-only transformer and assembles them into llm.Weights,
// quantizing each matrix into koharu's per-row int8 representation.
func buildWeights(gg *File) (*llm.Weights, error) {
	blockCount, err := metaInt(gg, "llama.block_count", "qwen2.block_count", "lfm2.block_count")
	if err != nil {
		return nil, err
	}
	headCount, err := metaInt(gg, "llama.attention.head_count", "qwen2.attention.head_count", "lfm2.attention.head_count")
	if err != nil {
		return nil, err
	}

	tokEmbeddings, err := loadQuant(gg, "token_embd.weight")
	if err != nil {
		return nil, err
	}
	headDim := tokEmbeddings.InDim
	if headCount > 0 {
		headDim /= headCount
	}
	outputNorm, err := gg.Tensor("output_norm.weight")
	if err != nil {
		return nil, err
	}
	output, err := loadQuant(gg, "output.weight")
	if err != nil {
		return nil, err
	}

	layers := make([]llm.LayerWeights, blockCount)
	for i := range layers {
		prefix := "blk." + strconv.Itoa(i) + "."
		attnNorm, err := gg.Tensor(prefix + "attn_norm.weight")
		if err != nil {
			return nil, err
		}
		ffnNorm, err := gg.Tensor(prefix + "ffn_norm.weight")
		if err != nil {
			return nil, err
		}
		wq, err := loadQuant(gg, prefix+"attn_q.weight")
		if err != nil {
			return nil, err
		}
		wk, err := loadQuant(gg, prefix+"attn_k.weight")
		if err != nil {
			return nil, err
		}
		wv, err := loadQuant(gg, prefix+"attn_v.weight")
		if err != nil {
			return nil, err
		}
		wo, err := loadQuant(gg, prefix+"attn_output.weight")
		if err != nil {
			return nil, err
		}
		w1, err := loadQuant(gg, prefix+"ffn_gate.weight")
		if err != nil {
			return nil, err
		}
		w2, err := loadQuant(gg, prefix+"ffn_down.weight")
		if err != nil {
			return nil, err
		}
		w3, err := loadQuant(gg, prefix+"ffn_up.weight")
		if err != nil {
			return nil, err
		}
		layers[i] = llm.LayerWeights{
			AttnNorm: attnNorm, FFNNorm: ffnNorm,
			WQ: wq, WK: wk, WV: wv, WO: wo,
			W1: w1, W2: w2, W3: w3,
		}
	}

	eosToken, _ := metaInt(gg, "tokenizer.ggml.eos_token_id")

	return &llm.Weights{
		TokEmbeddings: tokEmbeddings,
		OutputNorm:    outputNorm,
		Output:        output,
		Layers:        layers,
		HeadDim:       headDim,
		NumLayers:     blockCount,
		EOSToken:      uint32(eosToken),
		VocabSize:     tokEmbeddings.OutDim,
	}, nil
}

// loadQuant reads a 2-D tensor and packages it as koharu's per-row
// int8-quantized weight matrix, regardless of what quantization (if any)
// the GGUF file stored it under: File.Tensor always returns dequantized
// float32, so requantization here is consistent across source formats.
func loadQuant(gg *File, name string) (*nn.QMatMulWeights, error) {
	info, ok := gg.Tensors[name]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "gguf: tensor not found: "+name)
	}
	if len(info.Dims) != 2 {
		return nil, kerr.New(kerr.BadInput, "gguf: expected a 2-D tensor for "+name)
	}
	// GGUF stores dims fastest-varying first: dims[0] is the input
	// (column) dimension, dims[1] the output (row) dimension.
	inDim, outDim := int(info.Dims[0]), int(info.Dims[1])

	data, err := gg.Tensor(name)
	if err != nil {
		return nil, err
	}
	quant, scales := quantizeRows(data, outDim, inDim)
	return &nn.QMatMulWeights{Quant: quant, Scales: scales, InDim: inDim, OutDim: outDim}, nil
}

func metaInt(gg *File, keys ...string) (int, error) {
	for _, k := range keys {
		v, ok := gg.Metadata[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case uint32:
			return int(n), nil
		case int32:
			return int(n), nil
		case uint64:
			return int(n), nil
		case int64:
			return int(n), nil
		}
	}
	return 0, kerr.New(kerr.BadInput, "gguf: missing integer metadata key among "+joinKeys(keys))
}

func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

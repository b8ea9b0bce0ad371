// Package llm implements the quantized chat-model wrapper used for
// in-place translation: a closed catalogue of GGUF model families, each
// with its own chat markers and prompt template, loaded one at a time.
package llm

import (
	"sort"
	"strings"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// Family is the closed set of supported model architectures. New
// families are added here, never through a plugin mechanism.
type Family int

const (
	FamilyLlama Family = iota
	FamilyQwen2
	FamilyLFM2
)

// ModelID is the closed catalogue of selectable translation models.
type ModelID int

const (
	VntlLlama3_8Bv2 ModelID = iota
	Lfm2_350mEnjpMt
	SakuraGalTransl7Bv3_7
	Sakura1_5bQwen2_5v1_0
	HunyuanMT7B
)

var allModels = []ModelID{VntlLlama3_8Bv2, Lfm2_350mEnjpMt, SakuraGalTransl7Bv3_7, Sakura1_5bQwen2_5v1_0, HunyuanMT7B}

type modelConfig struct {
	Key        string
	Repo       string
	Filename   string
	Tokenizer  string
	Family     Family
}

var configs = map[ModelID]modelConfig{
	VntlLlama3_8Bv2: {
		Key:       "vntl-llama3-8b-v2",
		Repo:      "lmg-anon/vntl-llama3-8b-v2-gguf",
		Filename:  "vntl-llama3-8b-v2-hf-q8_0.gguf",
		Tokenizer: "rinna/llama-3-youko-8b",
		Family:    FamilyLlama,
	},
	Lfm2_350mEnjpMt: {
		Key:       "lfm2-350m-enjp-mt",
		Repo:      "LiquidAI/LFM2-350M-ENJP-MT-GGUF",
		Filename:  "LFM2-350M-ENJP-MT-Q8_0.gguf",
		Tokenizer: "LiquidAI/LFM2-350M-ENJP-MT",
		Family:    FamilyLFM2,
	},
	SakuraGalTransl7Bv3_7: {
		Key:       "sakura-galtransl-7b-v3.7",
		Repo:      "SakuraLLM/Sakura-GalTransl-7B-v3.7",
		Filename:  "Sakura-Galtransl-7B-v3.7.gguf",
		Tokenizer: "Qwen/Qwen2.5-1.5B-Instruct",
		Family:    FamilyQwen2,
	},
	Sakura1_5bQwen2_5v1_0: {
		Key:       "sakura-1.5b-qwen2.5-v1.0",
		Repo:      "SakuraLLM/Sakura-1.5B-Qwen2.5-v1.0-GGUF",
		Filename:  "sakura-1.5b-qwen2.5-v1.0-q6k.gguf",
		Tokenizer: "Qwen/Qwen2.5-1.5B-Instruct",
		Family:    FamilyQwen2,
	},
	HunyuanMT7B: {
		Key:       "hunyuan-mt-7b",
		Repo:      "tencent/Hunyuan-MT-7B-GGUF",
		Filename:  "hunyuan-mt-7b-q8_0.gguf",
		Tokenizer: "tencent/Hunyuan-MT-7B",
		Family:    FamilyQwen2,
	},
}

// String returns the model's canonical wire-protocol key.
func (m ModelID) String() string {
	if cfg, ok := configs[m]; ok {
		return cfg.Key
	}
	return "unknown"
}

// ParseModelID resolves a wire-protocol key back to its ModelID.
func ParseModelID(s string) (ModelID, error) {
	for id, cfg := range configs {
		if cfg.Key == s {
			return id, nil
		}
	}
	return 0, kerr.New(kerr.BadInput, "unknown model id: "+s)
}

// Info is the public catalogue entry returned by the "llmList" operation.
type Info struct {
	ID          string
	DisplayName string
}

// List returns every model sorted by the same locale/hardware preference
// key the reference implementation uses: VNTL first by default, LFM2
// favored on CPU, the Sakura GalTransl/Qwen variants favored for Chinese
// locales, and Hunyuan favored for everything else.
func List(language string, isCPU bool) []Info {
	cpuFactor := 1
	if isCPU {
		cpuFactor = 10
	}
	zhFactor := 1
	if strings.HasPrefix(language, "zh") {
		zhFactor = 10
	}
	nonZhEnFactor := 100
	if strings.HasPrefix(language, "zh") || strings.HasPrefix(language, "en") {
		nonZhEnFactor = 1
	}

	keyOf := func(id ModelID) int {
		switch id {
		case VntlLlama3_8Bv2:
			return 100
		case Lfm2_350mEnjpMt:
			return 200 / cpuFactor
		case SakuraGalTransl7Bv3_7:
			return 300 / zhFactor
		case Sakura1_5bQwen2_5v1_0:
			return 400 / zhFactor / cpuFactor
		case HunyuanMT7B:
			return 500 / nonZhEnFactor
		default:
			return 1 << 30
		}
	}

	models := append([]ModelID(nil), allModels...)
	sort.SliceStable(models, func(i, j int) bool { return keyOf(models[i]) < keyOf(models[j]) })

	out := make([]Info, len(models))
	for i, id := range models {
		out[i] = Info{ID: id.String(), DisplayName: displayName(id)}
	}
	return out
}

func displayName(id ModelID) string {
	switch id {
	case VntlLlama3_8Bv2:
		return "VNTL Llama 3 8B v2"
	case Lfm2_350mEnjpMt:
		return "LFM2 350M EN/JP MT"
	case SakuraGalTransl7Bv3_7:
		return "Sakura GalTransl 7B v3.7"
	case Sakura1_5bQwen2_5v1_0:
		return "Sakura 1.5B Qwen2.5 v1.0"
	case HunyuanMT7B:
		return "Hunyuan MT 7B"
	default:
		return "unknown"
	}
}

// markers is the chat-template delimiter set for one model family.
type markers struct {
	Prefix     string
	RoleStart  string
	RoleEnd    string
	MessageEnd string
}

func markersFor(f Family) markers {
	switch f {
	case FamilyLlama:
		return markers{Prefix: "<|begin_of_text|>", RoleStart: "<|start_header_id|>", RoleEnd: "<|end_header_id|>", MessageEnd: "<|eot_id|>"}
	case FamilyLFM2:
		return markers{RoleStart: "<|im_start|>", MessageEnd: "<|im_end|>"}
	default: // Qwen2 and Qwen2-derived fine-tunes
		return markers{RoleStart: "<|im_start|>", MessageEnd: "<|im_end|>"}
	}
}

package assets

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// ggufValueType mirrors the GGUF metadata value type tags (llama.cpp's
// gguf.h), the wire format koharu's model bundles are shipped in.
type ggufValueType uint32

const (
	ggufUint8   ggufValueType = 0
	ggufInt8    ggufValueType = 1
	ggufUint16  ggufValueType = 2
	ggufInt16   ggufValueType = 3
	ggufUint32  ggufValueType = 4
	ggufInt32   ggufValueType = 5
	ggufFloat32 ggufValueType = 6
	ggufBool    ggufValueType = 7
	ggufString  ggufValueType = 8
	ggufArray   ggufValueType = 9
	ggufUint64  ggufValueType = 10
	ggufInt64   ggufValueType = 11
	ggufFloat64 ggufValueType = 12
)

// ggufTensorType is the subset of GGML tensor element types this loader
// knows how to dequantize. Block-quantized types beyond Q8_0 are real GGUF
// types but are not decoded here; File.Tensor reports a clear error for
// them rather than silently returning zeros.
type ggufTensorType uint32

const (
	ggmlTypeF32  ggufTensorType = 0
	ggmlTypeF16  ggufTensorType = 1
	ggmlTypeQ8_0 ggufTensorType = 8
)

const ggufMagic = 0x46554747 // "GGUF" little-endian

// TensorInfo describes one tensor's shape, element type, and byte offset
// within the data section.
type TensorInfo struct {
	Name       string
	Dims       []uint64
	Type       ggufTensorType
	Offset     uint64
}

// File is a parsed GGUF container: metadata key/value pairs plus the
// tensor directory, with lazy per-tensor dequantization via Tensor.
type File struct {
	Metadata map[string]any
	Tensors  map[string]TensorInfo

	dataOffset int64
	path       string
}

// OpenGGUF parses a GGUF file's header, metadata, and tensor directory.
// Tensor payloads are read on demand via (*File).Tensor.
func OpenGGUF(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "gguf: open", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, kerr.Wrap(kerr.BadInput, "gguf: read magic", err)
	}
	if magic != ggufMagic {
		return nil, kerr.New(kerr.BadInput, "gguf: bad magic number")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, kerr.Wrap(kerr.BadInput, "gguf: read version", err)
	}
	if version != 2 && version != 3 {
		return nil, kerr.New(kerr.BadInput, fmt.Sprintf("gguf: unsupported version %d", version))
	}

	tensorCount, err := readU64(r)
	if err != nil {
		return nil, err
	}
	kvCount, err := readU64(r)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]any, kvCount)
	for i := uint64(0); i < kvCount; i++ {
		key, err := readGGUFString(r)
		if err != nil {
			return nil, kerr.Wrap(kerr.BadInput, "gguf: read kv key", err)
		}
		val, err := readGGUFValue(r)
		if err != nil {
			return nil, kerr.Wrap(kerr.BadInput, "gguf: read kv value for "+key, err)
		}
		meta[key] = val
	}

	tensors := make(map[string]TensorInfo, tensorCount)
	for i := uint64(0); i < tensorCount; i++ {
		name, err := readGGUFString(r)
		if err != nil {
			return nil, kerr.Wrap(kerr.BadInput, "gguf: read tensor name", err)
		}
		nDims, err := readU32(r)
		if err != nil {
			return nil, err
		}
		dims := make([]uint64, nDims)
		for d := range dims {
			dims[d], err = readU64(r)
			if err != nil {
				return nil, err
			}
		}
		typ, err := readU32(r)
		if err != nil {
			return nil, err
		}
		offset, err := readU64(r)
		if err != nil {
			return nil, err
		}
		tensors[name] = TensorInfo{Name: name, Dims: dims, Type: ggufTensorType(typ), Offset: offset}
	}

	// The data section begins at the next 32-byte-aligned offset from the
	// current stream position; bufio has already buffered past it, so
	// recompute from the underlying file's offset.
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "gguf: seek", err)
	}
	consumed := pos - int64(r.Buffered())
	const align = 32
	dataOffset := consumed
	if rem := dataOffset % align; rem != 0 {
		dataOffset += align - rem
	}

	return &File{Metadata: meta, Tensors: tensors, dataOffset: dataOffset, path: path}, nil
}

// Tensor dequantizes the named tensor to a flat float32 slice in row-major
// order. Returns kerr.BadInput for tensor element types this loader
// does not decode.
func (f *File) Tensor(name string) ([]float32, error) {
	info, ok := f.Tensors[name]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "gguf: tensor not found: "+name)
	}
	n := uint64(1)
	for _, d := range info.Dims {
		n *= d
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "gguf: open for tensor read", err)
	}
	defer file.Close()
	if _, err := file.Seek(f.dataOffset+int64(info.Offset), io.SeekStart); err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "gguf: seek tensor", err)
	}

	switch info.Type {
	case ggmlTypeF32:
		buf := make([]byte, n*4)
		if _, err := io.ReadFull(file, buf); err != nil {
			return nil, kerr.Wrap(kerr.IOFailure, "gguf: read f32 tensor", err)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return out, nil
	case ggmlTypeF16:
		buf := make([]byte, n*2)
		if _, err := io.ReadFull(file, buf); err != nil {
			return nil, kerr.Wrap(kerr.IOFailure, "gguf: read f16 tensor", err)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = float16ToFloat32(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		return out, nil
	case ggmlTypeQ8_0:
		const blockSize = 32
		numBlocks := (n + blockSize - 1) / blockSize
		out := make([]float32, 0, n)
		blockBuf := make([]byte, 2+blockSize)
		for b := uint64(0); b < numBlocks; b++ {
			if _, err := io.ReadFull(file, blockBuf); err != nil {
				return nil, kerr.Wrap(kerr.IOFailure, "gguf: read q8_0 block", err)
			}
			scale := float16ToFloat32(binary.LittleEndian.Uint16(blockBuf[:2]))
			for i := 0; i < blockSize && uint64(len(out)) < n; i++ {
				out = append(out, scale*float32(int8(blockBuf[2+i])))
			}
		}
		return out, nil
	default:
		return nil, kerr.New(kerr.BadInput, fmt.Sprintf("gguf: tensor type %d not supported for %q", info.Type, name))
	}
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	var bits uint32
	switch {
	case exp == 0 && frac == 0:
		bits = sign << 31
	case exp == 0x1f:
		bits = sign<<31 | 0xff<<23 | frac<<13
	case exp == 0:
		// subnormal
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		exp++
		frac &= 0x3ff
		bits = sign<<31 | (exp+112)<<23 | frac<<13
	default:
		bits = sign<<31 | (exp+112)<<23 | frac<<13
	}
	return math.Float32frombits(bits)
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readGGUFString(r io.Reader) (string, error) {
	n, err := readU64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readGGUFValue(r io.Reader) (any, error) {
	var typ uint32
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return nil, err
	}
	return readGGUFTypedValue(r, ggufValueType(typ))
}

func readGGUFTypedValue(r io.Reader, typ ggufValueType) (any, error) {
	switch typ {
	case ggufUint8:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufInt8:
		var v int8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufUint16:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufInt16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufUint32:
		return readU32(r)
	case ggufInt32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufFloat32:
		var v float32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufBool:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v != 0, err
	case ggufString:
		return readGGUFString(r)
	case ggufUint64:
		return readU64(r)
	case ggufInt64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufFloat64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case ggufArray:
		var elemType uint32
		if err := binary.Read(r, binary.LittleEndian, &elemType); err != nil {
			return nil, err
		}
		count, err := readU64(r)
		if err != nil {
			return nil, err
		}
		out := make([]any, count)
		for i := range out {
			out[i], err = readGGUFTypedValue(r, ggufValueType(elemType))
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, kerr.New(kerr.BadInput, fmt.Sprintf("gguf: unknown value type %d", typ))
	}
}

// quantizeRows converts a float32 weight matrix (outDim rows of inDim
// columns) into koharu's per-row int8 quantization: each row's scale is
// its max absolute value divided by 127.
func quantizeRows(data []float32, outDim, inDim int) (quant []int8, scales []float32) {
	quant = make([]int8, outDim*inDim)
	scales = make([]float32, outDim)
	for o := 0; o < outDim; o++ {
		row := data[o*inDim : (o+1)*inDim]
		var maxAbs float32
		for _, v := range row {
			if v < 0 {
				v = -v
			}
			if v > maxAbs {
				maxAbs = v
			}
		}
		scale := maxAbs / 127
		if scale == 0 {
			scale = 1
		}
		scales[o] = scale
		for i, v := range row {
			q := v / scale
			if q > 127 {
				q = 127
			}
			if q < -127 {
				q = -127
			}
			quant[o*inDim+i] = int8(q)
		}
	}
	return quant, scales
}

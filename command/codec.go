package command

import (
	"bufio"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Errors returned by the codec.
var (
	ErrUnknownOp = errors.New("command: unknown op")
	ErrInvalid   = errors.New("command: invalid envelope")
)

//go:embed envelope.schema.json
var envelopeSchemaJSON string

var envelopeSchema = jsonschema.MustCompileString("envelope.schema.json", envelopeSchemaJSON)

// Envelope is the wire form of one command: {"op": name, "args": {...}}.
type Envelope struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Marshal encodes c as one JSON envelope.
func Marshal(c Command) ([]byte, error) {
	args, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("command: marshal %s: %w", c.Type(), err)
	}
	return json.Marshal(Envelope{Op: c.Type().String(), Args: args})
}

// Unmarshal decodes one JSON envelope. The envelope is validated
// against the embedded schema before the args are decoded.
func Unmarshal(data []byte) (Command, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := envelopeSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	t, ok := TypeOf(env.Op)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownOp, env.Op)
	}
	c := newByType(t)
	if len(env.Args) > 0 {
		if err := json.Unmarshal(env.Args, c); err != nil {
			return nil, fmt.Errorf("command: %s args: %w", env.Op, err)
		}
	}
	return Value(c), nil
}

// Value returns the command c points to, or c itself when it is already
// a value. A nil pointer yields nil. Decoded commands are always values
// so that they compare equal to literals.
func Value(c Command) Command {
	switch v := c.(type) {
	case *AddTile:
		return deref(v)
	case *SetTileMaterialFrames:
		return deref(v)
	case *AddSolid:
		return deref(v)
	case *AddSolidWithMaterial:
		return deref(v)
	case *RemoveTile:
		return deref(v)
	case *BuildAtlas:
		return deref(v)
	case *SetAtlasSize:
		return deref(v)
	case *AddPoly2D:
		return deref(v)
	case *AddPoly3D:
		return deref(v)
	case *AddLineStrip2D:
		return deref(v)
	case *AddLineStrip2DPx:
		return deref(v)
	case *NewChunk:
		return deref(v)
	case *AddChunk:
		return deref(v)
	case *RemoveChunk:
		return deref(v)
	case *RemoveChunkAt:
		return deref(v)
	case *SetCurrentChunk:
		return deref(v)
	case *SetGeoVisible:
		return deref(v)
	case *SetLayer:
		return deref(v)
	case *SetTransform2D:
		return deref(v)
	case *SetTransform3D:
		return deref(v)
	case *SetBvhLeafSize:
		return deref(v)
	case *SetAnimationCounter:
		return deref(v)
	case *SetBackground:
		return deref(v)
	case *SetGP:
		return deref(v)
	case *SetPalette:
		return deref(v)
	case *SetRenderMode:
		return deref(v)
	case *SetSource2D:
		return deref(v)
	case *SetSource3D:
		return deref(v)
	case *SetSourceSDF:
		return deref(v)
	case *SetViewportRect2D:
		return deref(v)
	case *SetSDFData:
		return deref(v)
	case *SetCamera:
		return deref(v)
	case *SetPingPong:
		return deref(v)
	case *AddLight:
		return deref(v)
	case *RemoveLight:
		return deref(v)
	case *ClearLights:
		return deref(v)
	case *AddDynamic:
		return deref(v)
	case *ClearDynamics:
		return deref(v)
	case *SetAvatarData:
		return deref(v)
	case *RemoveAvatarData:
		return deref(v)
	case *ClearAvatarData:
		return deref(v)
	case *Clear:
		return deref(v)
	case *ClearTiles:
		return deref(v)
	case *ClearGeometry:
		return deref(v)
	case *SetActiveLayer:
		return deref(v)
	case *SetLayerEnabled:
		return deref(v)
	}
	return c
}

func deref[T Command](p *T) Command {
	if p == nil {
		return nil
	}
	return *p

}

// Encoder writes commands as JSON lines.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, 128*1024)}
}

// Encode writes c followed by a newline.
func (e *Encoder) Encode(c Command) error {
	b, err := Marshal(c)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return err
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Decoder reads JSON-lines commands. Blank lines are skipped.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	return &Decoder{sc: sc}
}

// Decode returns the next command, or io.EOF at the end of the input.
func (d *Decoder) Decode() (Command, error) {
	for d.sc.Scan() {
		d.line++
		b := d.sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		c, err := Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		return c, nil
	}
	if err := d.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Compressed reports whether path names a zstd-compressed log.
func Compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}

// ReadFile decodes every command in the log at path. Files ending in
// .zst are decompressed.
func ReadFile(path string) ([]Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if Compressed(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}
	return ReadAll(r)
}

// ReadAll decodes every command from r.
func ReadAll(r io.Reader) ([]Command, error) {
	d := NewDecoder(r)
	var out []Command
	for {
		c, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}

// WriteFile writes cmds to path as JSON lines, compressing with zstd
// when path ends in .zst.
func WriteFile(path string, cmds []Command) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	var enc *zstd.Encoder
	if Compressed(path) {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return err
		}
		w = enc
	}

	e := NewEncoder(w)
	for _, c := range cmds {
		if err := e.Encode(c); err != nil {
			if enc != nil {
				_ = enc.Close()
			}
			return err
		}
	}
	if err := e.Flush(); err != nil {
		return err
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

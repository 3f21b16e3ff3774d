package command

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

var tile = uuid.MustParse("4c1f1b0e-7d3a-4b7e-9f11-2a6d0c9b5e01")

func sampleCommands() []Command {
	rect := [4]float32{0, 0, 320, 200}
	return []Command{
		AddSolid{ID: tile, Color: [4]uint8{255, 0, 0, 255}},
		AddTile{ID: tile, Width: 1, Height: 1, Frames: [][]byte{{1, 2, 3, 4}}},
		SetAtlasSize{Width: 512, Height: 512},
		BuildAtlas{},
		SetCurrentChunk{ID: tile},
		AddPoly2D{Poly: scene.SquarePoly2D(scene.Sector(1), tile, [2]float32{0, 0}, 2, 0, true)},
		AddPoly3D{Poly: scene.CubePoly3D(scene.Sector(2), tile, geom.V3(0, 0, 0), 1)},
		AddLineStrip2DPx{ID: scene.Linedef(3), TileID: tile, Points: [][2]float32{{0, 0}, {1, 1}}, WidthPx: 2},
		AddChunk{ID: uuid.New(), Chunk: ChunkData{Origin: scene.GridPos{X: 32}, Size: 32, Priority: 1}},
		SetTransform2D{Matrix: geom.Translate3(1, 2)},
		SetRenderMode{Mode: scene.Mode3D},
		SetGP{Slot: 3, Value: geom.V4(1, 2, 3, 4)},
		SetViewportRect2D{Rect: &rect},
		SetCamera{Camera: scene.IsoCamera()},
		AddLight{ID: scene.LightID(1), Light: scene.NewPointLight(geom.V3(1, 2, 3))},
		AddDynamic{Object: scene.NewAvatarBillboard(scene.Character(1), geom.V3(0, 1, 0), 1, 2)},
		SetAvatarData{ID: scene.Character(1), Size: 1, RGBA: []byte{9, 9, 9, 9}},
		SetActiveLayer{Index: 1},
		SetLayerEnabled{Index: 1, Enabled: true},
		Clear{},
	}
}

func TestTypeNames(t *testing.T) {
	seen := map[string]bool{}
	for i := Type(0); i < typeCount; i++ {
		name := i.String()
		require.NotEmpty(t, name, "type %d has no name", i)
		assert.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true

		got, ok := TypeOf(name)
		require.True(t, ok)
		assert.Equal(t, i, got)

		c := newByType(i)
		require.NotNil(t, c, "no constructor for %s", name)
		assert.Equal(t, i, c.Type())
	}
	assert.Equal(t, "unknown", typeCount.String())
	_, ok := TypeOf("nope")
	assert.False(t, ok)
}

func TestEnvelope(t *testing.T) {
	b, err := Marshal(SetBackground{Color: geom.V4(0, 0, 0, 1)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), `{"op":"set_background","args":{`), string(b))

	c, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, SetBackground{Color: geom.V4(0, 0, 0, 1)}, c)

	c, err = Unmarshal([]byte(`{"op":"clear"}`))
	require.NoError(t, err)
	assert.Equal(t, Clear{}, c)
}

func TestValue(t *testing.T) {
	gp := SetGP{Slot: 3, Value: geom.V4(1, 2, 3, 4)}
	assert.Equal(t, gp, Value(&gp))
	assert.Equal(t, gp, Value(gp))
	assert.Equal(t, Clear{}, Value(&Clear{}))
	assert.Nil(t, Value((*AddTile)(nil)))
	assert.Nil(t, Value(nil))
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"not json", `{op`, ErrInvalid},
		{"missing op", `{"args":{}}`, ErrInvalid},
		{"extra field", `{"op":"clear","x":1}`, ErrInvalid},
		{"bad op pattern", `{"op":"Clear"}`, ErrInvalid},
		{"args not object", `{"op":"clear","args":[1]}`, ErrInvalid},
		{"unknown op", `{"op":"warp_drive"}`, ErrUnknownOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Unmarshal([]byte(`{"op":"set_gp","args":{"slot":"x"}}`))
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	for _, c := range sampleCommands() {
		require.NoError(t, e.Encode(c))
	}
	require.NoError(t, e.Flush())

	// Blank lines are tolerated.
	in := strings.Replace(buf.String(), "\n", "\n\n", 1)
	got, err := ReadAll(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, sampleCommands()[0], got[0])
	require.Len(t, got, len(sampleCommands()))
	for i, c := range got {
		assert.Equal(t, sampleCommands()[i].Type(), c.Type())
	}

	poly := got[5].(AddPoly2D).Poly
	assert.Equal(t, scene.Sector(1), poly.ID)
	assert.Len(t, poly.Vertices, 4)

	d := NewDecoder(strings.NewReader("{\"op\":\"clear\"}\n{\"op\":\"bogus\"}\n"))
	_, err = d.Decode()
	require.NoError(t, err)
	_, err = d.Decode()
	require.ErrorIs(t, err, ErrUnknownOp)
	assert.Contains(t, err.Error(), "line 2")
	_, err = NewDecoder(strings.NewReader("")).Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"session.jsonl", "session.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, sampleCommands()))
			got, err := ReadFile(path)
			require.NoError(t, err)
			require.Len(t, got, len(sampleCommands()))
			assert.Equal(t, SetActiveLayer{Index: 1}, got[17])
		})
	}
	assert.True(t, Compressed("a.JSONL.ZST"))
	assert.False(t, Compressed("a.jsonl"))

	_, err := ReadFile(filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestChunkData(t *testing.T) {
	d := ChunkData{
		Origin:   scene.GridPos{X: 1, Y: 2},
		Size:     8,
		Priority: 3,
		Polys2D:  []*scene.Poly2D{scene.SquarePoly2D(scene.Sector(1), tile, [2]float32{1, 1}, 1, 0, true)},
		Polys3D:  []*scene.Poly3D{scene.CubePoly3D(scene.Sector(2), tile, geom.Vec3{}, 1)},
		Lines: []*scene.LineStrip2D{
			{ID: scene.Linedef(1), TileID: tile, Points: [][2]float32{{0, 0}, {1, 0}}, WidthPx: 1, Visible: true},
			{ID: scene.Linedef(2), Points: [][2]float32{{0, 0}}},
		},
	}
	c := d.Chunk()
	assert.Equal(t, int32(3), c.Priority)
	p2, p3, lines := c.Counts()
	assert.Equal(t, 1, p2)
	assert.Equal(t, 1, p3)
	assert.Equal(t, 1, lines, "single-point strips are dropped")
}

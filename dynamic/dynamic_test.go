package dynamic

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/scenevm/geom"
	"github.com/gogpu/scenevm/scene"
)

type tileMap map[uuid.UUID]uint32

func (m tileMap) TileIndex(id uuid.UUID) (uint32, bool) {
	i, ok := m[id]
	return i, ok
}

var (
	tileA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	tileB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func f32(w uint32) float32 { return math.Float32frombits(w) }

func solidAvatar(size uint32, px byte) []byte {
	buf := make([]byte, size*size*4)
	for i := range buf {
		buf[i] = px
	}
	return buf
}

func TestBuild_Empty(t *testing.T) {
	blob := New().Build(0, tileMap{})

	assert.Equal(t, Header{}, blob.Header)
	assert.Len(t, blob.Data, minDataWords)
	assert.Equal(t, (HeaderWords+minDataWords)*4, blob.Len())

	parsed, err := ParseBlob(blob.Bytes())
	require.NoError(t, err)
	assert.Equal(t, blob.Header, parsed.Header)
	assert.Nil(t, parsed.Lights())
	assert.Nil(t, parsed.Billboards())
}

func TestBuild_Lights(t *testing.T) {
	l := New()
	red := scene.NewPointLight(geom.V3(1, 2, 3))
	red.Color = geom.V3(1, 0, 0)
	red.StartDistance = 0.5
	l.SetLight(scene.LightID(2), red)
	off := scene.NewPointLight(geom.V3(0, 0, 0))
	off.Emitting = false
	l.SetLight(scene.LightID(1), off)

	blob := l.Build(7, tileMap{})
	require.Equal(t, uint32(2), blob.Header.LightsCount)
	assert.Equal(t, uint32(0), blob.Header.LightsOffset)
	assert.Equal(t, uint32(2*LightWords), blob.Header.DataWords)

	words := blob.Lights()
	require.Len(t, words, 2*LightWords)
	// Sorted by id: light(1) first.
	assert.Equal(t, uint32(0), words[1], "light(1) is not emitting")
	second := words[LightWords:]
	assert.Equal(t, uint32(scene.PointLight), second[0])
	assert.Equal(t, uint32(1), second[1])
	assert.Equal(t, []float32{1, 2, 3}, []float32{f32(second[4]), f32(second[5]), f32(second[6])})
	assert.Equal(t, []float32{1, 0, 0}, []float32{f32(second[8]), f32(second[9]), f32(second[10])})
	assert.Equal(t, float32(0.5), f32(second[14]))
	assert.Equal(t, float32(1), f32(second[16]), "no flicker")

	assert.True(t, l.RemoveLight(scene.LightID(2)))
	assert.False(t, l.RemoveLight(scene.LightID(2)))
	assert.Equal(t, 1, l.LightCount())
}

func TestFlickerFactor(t *testing.T) {
	light := scene.NewPointLight(geom.V3(3.7, -2, 1e12))
	light.Flicker = 0.4

	for anim := uint32(0); anim < 64; anim++ {
		f := FlickerFactor(light, anim)
		assert.GreaterOrEqual(t, f, float32(0.6)-1e-6)
		assert.LessOrEqual(t, f, float32(1))
		assert.Equal(t, f, FlickerFactor(light, anim), "same frame, same factor")
	}

	light.Flicker = 0
	assert.Equal(t, float32(1), FlickerFactor(light, 5))
	light.Flicker = float32(math.NaN())
	assert.Equal(t, float32(1), FlickerFactor(light, 5))
}

func TestSaturateU32(t *testing.T) {
	assert.Equal(t, uint32(0), saturateU32(-4))
	assert.Equal(t, uint32(0), saturateU32(float32(math.NaN())))
	assert.Equal(t, uint32(3), saturateU32(3.9))
	assert.Equal(t, uint32(math.MaxUint32), saturateU32(1e20))
}

func TestBuild_TileBillboards(t *testing.T) {
	l := New()
	bb := scene.NewTileBillboard(scene.Item(1), tileB, geom.V3(1, 2, 3), 4, 2)
	bb.RepeatMode = scene.RepeatX
	bb.Opacity = 0.5
	require.True(t, l.AddObject(bb))

	missing := scene.NewTileBillboard(scene.Item(2), uuid.New(), geom.Vec3{}, 1, 1)
	require.True(t, l.AddObject(missing))

	noTile := scene.NewTileBillboard(scene.Item(3), tileA, geom.Vec3{}, 1, 1)
	noTile.TileID = nil
	require.True(t, l.AddObject(noTile))

	blob := l.Build(0, tileMap{tileA: 0, tileB: 5})
	require.Equal(t, uint32(1), blob.Header.BillboardsCount)
	assert.Equal(t, uint32(0), blob.Header.BillboardsOffset, "first section starts at zero")

	w := blob.Billboards()
	assert.Equal(t, []float32{1, 2, 3, 4}, []float32{f32(w[0]), f32(w[1]), f32(w[2]), f32(w[3])})
	assert.Equal(t, []float32{2, 0, 0, 2}, []float32{f32(w[4]), f32(w[5]), f32(w[6]), f32(w[7])})
	assert.Equal(t, []float32{0, 1, 0}, []float32{f32(w[8]), f32(w[9]), f32(w[10])})
	assert.Equal(t, float32(scene.RepeatX), f32(w[11]))
	assert.Equal(t, uint32(5), w[12])
	assert.Equal(t, uint32(scene.BillboardTile), w[13])
	assert.Equal(t, float32(0.5), f32(w[14]))
}

func TestAddObject_Rejects(t *testing.T) {
	l := New()
	inf := float32(math.Inf(1))
	for _, size := range [][2]float32{{0, 1}, {1, -1}, {inf, 1}, {1, float32(math.NaN())}} {
		o := scene.NewAvatarBillboard(scene.Character(1), geom.Vec3{}, size[0], size[1])
		assert.False(t, l.AddObject(o), "size %v", size)
	}
	assert.Zero(t, l.ObjectCount())

	skew := scene.NewAvatarBillboard(scene.Character(1), geom.Vec3{}, 1, 1)
	skew.ViewRight = geom.Vec3{}
	skew.ViewUp = geom.V3(0, 0, float32(math.NaN()))
	require.True(t, l.AddObject(skew))
	got := l.Objects()[0]
	assert.Equal(t, geom.V3(1, 0, 0), got.ViewRight)
	assert.Equal(t, geom.V3(0, 1, 0), got.ViewUp)
}

func TestBuild_AvatarDedup(t *testing.T) {
	l := New()
	require.True(t, l.SetAvatar(scene.Character(1), 2, solidAvatar(2, 0x11)))
	require.True(t, l.SetAvatar(scene.Character(2), 1, []byte{1, 2, 3, 4}))
	assert.False(t, l.SetAvatar(scene.Character(3), 2, make([]byte, 15)))
	assert.False(t, l.SetAvatar(scene.Character(3), 0, nil))

	for _, id := range []scene.GeoID{scene.Character(1), scene.Character(2), scene.Character(3)} {
		require.True(t, l.AddObject(scene.NewAvatarBillboard(id, geom.Vec3{}, 1, 1)))
	}
	require.True(t, l.AddObject(scene.NewAvatarBillboard(scene.Character(1), geom.V3(5, 0, 0), 1, 1)))
	assert.Equal(t, 3, l.ObjectCount(), "re-adding character(1) replaces it")
	objs := l.Objects()
	assert.Equal(t, scene.Character(1), objs[0].ID, "replacement keeps its slot")
	assert.Equal(t, float32(5), objs[0].Center.X)

	light := scene.NewPointLight(geom.Vec3{})
	l.SetLight(scene.LightID(1), light)

	blob := l.Build(0, tileMap{})
	h := blob.Header
	assert.Equal(t, uint32(1), h.LightsCount)
	assert.Equal(t, uint32(2), h.BillboardsCount, "character(3) has no pixels")
	assert.Equal(t, uint32(LightWords), h.BillboardsOffset)
	assert.Equal(t, uint32(2), h.AvatarMetaCount)
	assert.Equal(t, h.BillboardsOffset+2*BillboardWords, h.AvatarMetaOffset)
	assert.Equal(t, h.AvatarMetaOffset+2*AvatarMetaWords, h.AvatarPixelOffset)
	assert.Equal(t, uint32(5), h.AvatarPixels())
	assert.Equal(t, h.AvatarPixelOffset+5, h.DataWords)

	bbs := blob.Billboards()
	assert.Equal(t, []uint32{0, 1}, []uint32{bbs[12], bbs[BillboardWords+12]})
	assert.Equal(t, uint32(scene.BillboardAvatar), bbs[13])
	assert.Equal(t, float32(5), f32(bbs[0]), "first billboard is the replacement")
	assert.Equal(t, float32(0), f32(bbs[11]), "avatars carry no repeat mode")

	metas := blob.AvatarMetas()
	assert.Equal(t, []uint32{0, 2, 0, 0, 4, 1, 0, 0}, metas)
	pixels := blob.Data[h.AvatarPixelOffset:h.DataWords]
	assert.Equal(t, uint32(0x11111111), pixels[0])
	assert.Equal(t, uint32(0x04030201), pixels[4])

	parsed, err := ParseBlob(blob.Bytes())
	require.NoError(t, err)
	assert.Equal(t, blob.Header, parsed.Header)
	assert.Equal(t, blob.Data, parsed.Data)
}

func TestObjects_TilesBeforeAvatars(t *testing.T) {
	l := New()
	require.True(t, l.AddObject(scene.NewAvatarBillboard(scene.Character(7), geom.Vec3{}, 1, 1)))
	tb := scene.NewTileBillboard(scene.Item(8), tileA, geom.Vec3{}, 1, 1)
	require.True(t, l.AddObject(tb))
	require.True(t, l.AddObject(tb))

	objs := l.Objects()
	require.Len(t, objs, 3, "tile billboards are not deduplicated")
	assert.Equal(t, scene.BillboardTile, objs[0].Kind)
	assert.Equal(t, scene.BillboardAvatar, objs[2].Kind)

	l.ClearObjects()
	assert.Zero(t, l.ObjectCount())
	require.True(t, l.AddObject(scene.NewAvatarBillboard(scene.Character(7), geom.Vec3{}, 1, 1)))
	assert.Equal(t, 1, l.ObjectCount())
}

func TestParseBlob_Errors(t *testing.T) {
	_, err := ParseBlob(make([]byte, 8))
	assert.ErrorIs(t, err, ErrShortBlob)

	b := &Blob{Header: Header{LightsCount: 1, DataWords: 4}, Data: make([]uint32, 4)}
	_, err = ParseBlob(b.Bytes())
	assert.ErrorIs(t, err, ErrShortBlob)

	b = &Blob{Header: Header{DataWords: 9}, Data: make([]uint32, 4)}
	_, err = ParseBlob(b.Bytes())
	assert.ErrorIs(t, err, ErrShortBlob)
}

func TestClear(t *testing.T) {
	l := New()
	l.SetLight(scene.LightID(1), scene.NewPointLight(geom.Vec3{}))
	l.AddObject(scene.NewAvatarBillboard(scene.Character(1), geom.Vec3{}, 1, 1))
	l.SetAvatar(scene.Character(1), 1, []byte{0, 0, 0, 0})
	l.Clear()

	assert.Zero(t, l.LightCount())
	assert.Zero(t, l.ObjectCount())
	assert.False(t, l.RemoveAvatar(scene.Character(1)))
	assert.Equal(t, Header{}, l.Build(1, tileMap{}).Header)
}

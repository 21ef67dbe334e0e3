package patch_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Glomels/audiohost"
	"github.com/Glomels/audiohost/mock"
	"github.com/Glomels/audiohost/patch"
)

const manifestPath = "patches/gain/gain.audiopatch"

const validManifest = `id: com.example.gain
version: "1.2"
name: Gain
description: A simple gain patch
category: effect
manufacturer: Example
source: ["*.dsp"]
`

type (
	testCompiler struct {
		fail    bool
		sources []patch.SourceFile
		setting audiohost.BuildSettings
		opts    patch.CompileOptions
		calls   int
	}

	testCache struct {
		items map[string][]byte
	}

	upperPreprocessor struct{}

	failingPreprocessor struct{}
)

func (c *testCompiler) Compile(messages *audiohost.CompileMessageList, sources []patch.SourceFile, settings audiohost.BuildSettings, opts patch.CompileOptions) (audiohost.Program, bool) {
	c.calls++
	c.sources = sources
	c.setting = settings
	c.opts = opts
	if c.fail {
		messages.AddError("syntax error in main.dsp")
		return nil, false
	}
	messages.AddWarning("unused endpoint")
	return mock.Program{}, true
}

func (c *testCache) StoreItemInCache(key string, data []byte) {
	if c.items == nil {
		c.items = map[string][]byte{}
	}
	c.items[key] = data
}

func (c *testCache) ReadItemFromCache(key string) []byte { return c.items[key] }

func (upperPreprocessor) PreprocessSourceFile(f patch.SourceFile) (patch.SourceFile, error) {
	f.Contents = append([]byte("// preprocessed\n"), f.Contents...)
	return f, nil
}

func (failingPreprocessor) PreprocessSourceFile(f patch.SourceFile) (patch.SourceFile, error) {
	return f, &patch.LoadError{Message: "preprocessor exploded"}
}

func newPatchFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, manifestPath, []byte(validManifest), 0644))
	require.NoError(t, afero.WriteFile(fs, "patches/gain/main.dsp", []byte("out = in * gain\n"), 0644))
	return fs
}

func newInstance(fs afero.Fs, compiler patch.Compiler, performer *mock.Performer) *patch.Instance {
	factory := &mock.Factory{}
	if performer != nil {
		factory.Performers = []*mock.Performer{performer}
	}
	return patch.NewInstance(factory, compiler, fs, manifestPath)
}

func defaultConfig() patch.PlayerConfiguration {
	return patch.PlayerConfiguration{SampleRate: 48000, MaxFramesPerBlock: 256}
}

func TestDescription(t *testing.T) {
	instance := newInstance(newPatchFs(t), nil, nil)

	assert.Equal(t, manifestPath, instance.Location())

	d := instance.Description()
	require.NotNil(t, d)
	require.True(t, d.IsValid())
	assert.Equal(t, "com.example.gain", d.UID)
	assert.Equal(t, "Gain", d.Name)
	assert.Equal(t, "1.2", d.Version)
	assert.Equal(t, "effect", d.Category)

	contents, err := d.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(contents), "uid: com.example.gain")
}

func TestDescriptionStubAfterFailedRefresh(t *testing.T) {
	fs := afero.NewMemMapFs() // no manifest at all
	instance := newInstance(fs, nil, nil)

	d := instance.Description()
	require.NotNil(t, d)
	assert.False(t, d.IsValid())
	assert.Contains(t, d.Error, "could not read manifest")

	// the stub is replaced once the manifest appears
	require.NoError(t, afero.WriteFile(fs, manifestPath, []byte(validManifest), 0644))
	require.NoError(t, afero.WriteFile(fs, "patches/gain/main.dsp", []byte("out = in\n"), 0644))
	d = instance.Description()
	assert.True(t, d.IsValid())
}

func TestDescriptionStubOnMissingSources(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, manifestPath, []byte(validManifest), 0644))
	instance := newInstance(fs, nil, nil)

	d := instance.Description()
	assert.False(t, d.IsValid())
	assert.Contains(t, d.Error, "no source files match")
}

func TestLastModificationTime(t *testing.T) {
	fs := newPatchFs(t)
	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes(manifestPath, older, older))
	require.NoError(t, fs.Chtimes("patches/gain/main.dsp", newer, newer))

	instance := newInstance(fs, nil, nil)
	assert.Equal(t, newer, instance.LastModificationTime())
}

func TestCompileNewPlayer(t *testing.T) {
	compiler := &testCompiler{}
	performer := &mock.Performer{}
	cache := &testCache{}
	instance := newInstance(newPatchFs(t), compiler, performer)

	player := instance.CompileNewPlayer(defaultConfig(), cache, upperPreprocessor{}, nil, nil)
	require.NotNil(t, player)
	assert.True(t, player.IsPlayable())
	assert.True(t, performer.Loaded)
	assert.True(t, performer.Linked)
	assert.Equal(t, audiohost.BuildSettings{SampleRate: 48000, MaxBlockSize: 256}, performer.Settings)

	require.Len(t, compiler.sources, 1)
	assert.Equal(t, "patches/gain/main.dsp", compiler.sources[0].Path)
	assert.Equal(t, "// preprocessed\nout = in * gain\n", string(compiler.sources[0].Contents))
	assert.Same(t, cache, compiler.opts.Cache.(*testCache))

	// non-error diagnostics are kept without failing the player
	require.Len(t, player.CompileMessages(), 1)
	assert.False(t, player.CompileMessages()[0].IsError())

	assert.Same(t, performer, player.Performer().(*mock.Performer))
	assert.Equal(t, "com.example.gain", player.Description().UID)
}

func TestCompileNewPlayerRefreshFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, manifestPath, []byte("id: [broken\n"), 0644))
	compiler := &testCompiler{}
	instance := newInstance(fs, compiler, &mock.Performer{})

	player := instance.CompileNewPlayer(defaultConfig(), nil, nil, nil, nil)
	require.NotNil(t, player)
	assert.False(t, player.IsPlayable())
	require.Len(t, player.CompileMessages(), 1)
	message := player.CompileMessages()[0]
	assert.True(t, message.IsError())
	assert.Contains(t, message.FullMessage, "could not parse manifest")
	assert.Equal(t, 0, compiler.calls)

	// the stub description carries the same message
	assert.Equal(t, message.FullMessage, instance.Description().Error)
}

func TestCompileNewPlayerCompileFailure(t *testing.T) {
	compiler := &testCompiler{fail: true}
	performer := &mock.Performer{}
	instance := newInstance(newPatchFs(t), compiler, performer)

	player := instance.CompileNewPlayer(defaultConfig(), nil, nil, nil, nil)
	require.NotNil(t, player)
	assert.False(t, player.IsPlayable())
	assert.False(t, performer.Loaded)
	require.Len(t, player.CompileMessages(), 1)
	assert.Equal(t, "syntax error in main.dsp", player.CompileMessages()[0].FullMessage)
}

func TestCompileNewPlayerLoadFailure(t *testing.T) {
	performer := &mock.Performer{FailLoad: true}
	instance := newInstance(newPatchFs(t), &testCompiler{}, performer)

	player := instance.CompileNewPlayer(defaultConfig(), nil, nil, nil, nil)
	assert.False(t, player.IsPlayable())
}

func TestCompileNewPlayerPreprocessorFailure(t *testing.T) {
	compiler := &testCompiler{}
	instance := newInstance(newPatchFs(t), compiler, &mock.Performer{})

	player := instance.CompileNewPlayer(defaultConfig(), nil, failingPreprocessor{}, nil, nil)
	assert.False(t, player.IsPlayable())
	require.Len(t, player.CompileMessages(), 1)
	assert.Equal(t, "preprocessor exploded", player.CompileMessages()[0].FullMessage)
	assert.Equal(t, 0, compiler.calls)
}

func TestCompileNewPlayerWithoutCompiler(t *testing.T) {
	instance := newInstance(newPatchFs(t), nil, &mock.Performer{})

	player := instance.CompileNewPlayer(defaultConfig(), nil, nil, nil, nil)
	require.NotNil(t, player)
	assert.False(t, player.IsPlayable())
	require.Len(t, player.CompileMessages(), 1)
	assert.True(t, player.CompileMessages()[0].IsError())
}

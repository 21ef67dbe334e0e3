// Package patch is the façade over a patch on disk: a lazily refreshed
// description of its source files and a factory that compiles them into
// players. Every operation tolerates load failures; errors are folded into
// description stubs and failed players instead of propagating.
package patch

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/Glomels/audiohost"
	"github.com/Glomels/audiohost/log"
)

// ManifestSuffix is the file name suffix of patch manifests.
const ManifestSuffix = ".audiopatch"

// Instance binds a manifest file to a performer factory and a compiler
// back-end. It may be shared between observer threads; the description is
// guarded and swapped as a whole.
type Instance struct {
	factory  audiohost.PerformerFactory
	compiler Compiler
	log      *logrus.Entry

	mu          sync.Mutex
	fileList    FileList
	description *Description
}

// NewInstance builds an instance for the manifest at manifestPath inside fs.
// The compiler and factory may be nil when the instance is only used to
// describe the patch.
func NewInstance(factory audiohost.PerformerFactory, compiler Compiler, fs afero.Fs, manifestPath string) *Instance {
	return &Instance{
		factory:  factory,
		compiler: compiler,
		log:      log.GetLogger().WithField("manifest", manifestPath),
		fileList: FileList{Fs: fs, ManifestPath: manifestPath},
	}
}

// Location returns the manifest file path the instance was built from.
func (i *Instance) Location() string { return i.fileList.ManifestPath }

// Description refreshes the file list and returns the current description.
// A failed refresh replaces the description with a stub carrying the error
// message; the result is never nil.
func (i *Instance) Description() *Description {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.silentRefresh()
	return i.description
}

// LastModificationTime refreshes the file list and returns the most recent
// modification time across the tree.
func (i *Instance) LastModificationTime() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.silentRefresh()
	return i.fileList.MostRecentModificationTime()
}

// silentRefresh refreshes and swallows the error into the description; it
// can be reported later when someone tries to compile.
func (i *Instance) silentRefresh() {
	if err := i.fileList.refresh(); err != nil {
		i.log.WithError(err).Debug("patch refresh failed")
		i.description = errorDescription(i.fileList.ManifestPath, err.Error())
		return
	}
	i.description = i.fileList.createDescription()
}

// CompileNewPlayer refreshes the file list and compiles a fresh player
// bound to it and to a new performer. The returned player is never nil. A
// refresh failure, a missing factory or compiler, or a preprocessor failure
// yields a player whose compile message list contains a single fatal error;
// when the compiler, the performer load or the link fails, the list holds
// the diagnostics those steps added.
func (i *Instance) CompileNewPlayer(config PlayerConfiguration, cache CompilerCache, pre SourceFilePreprocessor, externalData ExternalDataProvider, console ConsoleMessageHandler) *Player {
	i.mu.Lock()
	defer i.mu.Unlock()

	var performer audiohost.Performer
	if i.factory != nil {
		performer = i.factory.NewPerformer()
	}

	if err := i.fileList.refresh(); err != nil {
		i.log.WithError(err).Debug("patch refresh failed")
		i.description = errorDescription(i.fileList.ManifestPath, err.Error())
		player := newPlayer(i.fileList.snapshot(), config, performer)
		player.failWith(err.Error())
		return player
	}
	i.description = i.fileList.createDescription()

	player := newPlayer(i.fileList.snapshot(), config, performer)
	if performer == nil {
		player.failWith("no performer factory available")
		return player
	}
	settings := audiohost.BuildSettings{
		SampleRate:   config.SampleRate,
		MaxBlockSize: config.MaxFramesPerBlock,
	}
	player.compile(i.compiler, settings, pre, CompileOptions{
		Cache:        cache,
		ExternalData: externalData,
		Console:      console,
	})
	return player
}

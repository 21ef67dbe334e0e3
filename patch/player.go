package patch

import (
	"github.com/Glomels/audiohost"
)

type (
	// PlayerConfiguration is what a host knows about its device when asking
	// for a new player.
	PlayerConfiguration struct {
		SampleRate        float64
		MaxFramesPerBlock uint32
	}

	// Compiler turns patch sources into a program the performer back-end can
	// load. Diagnostics go into messages; ok is false when compilation
	// produced no usable program.
	Compiler interface {
		Compile(messages *audiohost.CompileMessageList, sources []SourceFile, settings audiohost.BuildSettings, opts CompileOptions) (audiohost.Program, bool)
	}

	// CompileOptions carries the optional compile collaborators; any field
	// may be nil.
	CompileOptions struct {
		Cache        CompilerCache
		ExternalData ExternalDataProvider
		Console      ConsoleMessageHandler
	}

	// CompilerCache lets the back-end store and reload compiled artifacts
	// keyed by a content hash.
	CompilerCache interface {
		StoreItemInCache(key string, data []byte)
		ReadItemFromCache(key string) []byte
	}

	// SourceFilePreprocessor can rewrite each source file before it reaches
	// the compiler.
	SourceFilePreprocessor interface {
		PreprocessSourceFile(f SourceFile) (SourceFile, error)
	}

	// ExternalDataProvider resolves named external resources (sample data
	// and the like) the program references.
	ExternalDataProvider interface {
		ExternalData(name string) ([]byte, bool)
	}

	// ConsoleMessageHandler receives console output emitted by the program
	// while compiling or running.
	ConsoleMessageHandler interface {
		HandleConsoleMessage(endpointName, message string)
	}

	// Player is the result of compiling a patch: a performer loaded and
	// linked with the compiled program, the file list snapshot it was built
	// from, and the diagnostics. A player always exists, even for failed
	// compiles; callers read IsPlayable and CompileMessages rather than
	// handling errors.
	Player struct {
		fileList  FileList
		config    PlayerConfiguration
		performer audiohost.Performer
		messages  audiohost.CompileMessageList
		playable  bool
	}
)

func newPlayer(fileList FileList, config PlayerConfiguration, performer audiohost.Performer) *Player {
	return &Player{fileList: fileList, config: config, performer: performer}
}

// IsPlayable reports whether compile, load and link all succeeded.
func (p *Player) IsPlayable() bool { return p.playable }

// CompileMessages returns the diagnostics accumulated while building the
// player.
func (p *Player) CompileMessages() []audiohost.CompileMessage { return p.messages.Messages }

// Performer returns the linked performer, ready to be handed to a session.
// It is nil when the instance had no performer factory; an unplayable
// player's performer holds no linked program.
func (p *Player) Performer() audiohost.Performer { return p.performer }

// Description derives a description from the file list the player was
// compiled from.
func (p *Player) Description() *Description { return p.fileList.createDescription() }

// failWith marks the player failed with a single fatal message.
func (p *Player) failWith(message string) {
	p.messages.Add(audiohost.CompileMessage{
		FullMessage: message,
		Description: message,
		Severity:    audiohost.SeverityError,
	})
	p.playable = false
}

// compile runs preprocessor, compiler, performer load and performer link,
// folding every failure into the message list.
func (p *Player) compile(compiler Compiler, settings audiohost.BuildSettings, pre SourceFilePreprocessor, opts CompileOptions) {
	if compiler == nil {
		p.failWith("no compiler available")
		return
	}
	sources, err := p.fileList.SourceFiles()
	if err != nil {
		p.failWith(err.Error())
		return
	}
	if pre != nil {
		for i, src := range sources {
			processed, err := pre.PreprocessSourceFile(src)
			if err != nil {
				p.failWith(err.Error())
				return
			}
			sources[i] = processed
		}
	}
	program, ok := compiler.Compile(&p.messages, sources, settings, opts)
	if !ok || p.messages.HasErrors() {
		return
	}
	if !p.performer.Load(&p.messages, program) {
		return
	}
	if !p.performer.Link(&p.messages, settings) {
		return
	}
	p.playable = true
}

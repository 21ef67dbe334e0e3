package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/Glomels/audiohost"
	"github.com/Glomels/audiohost/config"
	"github.com/Glomels/audiohost/gomidi"
	"github.com/Glomels/audiohost/patch"
	"github.com/Glomels/audiohost/portaudio"
	"github.com/Glomels/audiohost/version"
)

func main() {
	configPath := flag.String("c", "", "Path to the device configuration file.")
	skipDevice := flag.Bool("n", false, "Do not open the audio device; only describe patches.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}

	req, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load configuration: %v\n", err)
		os.Exit(1)
	}

	retval := 0
	if !*skipDevice {
		if err := printDeviceEndpoints(req); err != nil {
			fmt.Fprintf(os.Stderr, "could not open audio device: %v\n", err)
			retval = 1
		}
	}

	fs := afero.NewOsFs()
	for _, manifestPath := range flag.Args() {
		if err := printPatch(fs, manifestPath); err != nil {
			fmt.Fprintf(os.Stderr, "could not describe patch %v: %v\n", manifestPath, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func printDeviceEndpoints(req audiohost.Requirements) error {
	collector := gomidi.NewCollector(req.SampleRate)
	defer collector.Close()
	if req.MIDIInputName != "" {
		if err := collector.Open(req.MIDIInputName); err != nil {
			fmt.Fprintf(os.Stderr, "could not open MIDI input: %v\n", err)
		}
	}

	audioSystem, err := portaudio.New(req, collector)
	if err != nil {
		return err
	}
	venue := audiohost.NewVenue(audioSystem, nil)
	defer venue.Close()

	fmt.Printf("device: %v Hz, block %v, %v in / %v out\n",
		audioSystem.SampleRate(), audioSystem.MaxBlockSize(),
		audioSystem.NumInputChannels(), audioSystem.NumOutputChannels())
	fmt.Println("sources:")
	for _, e := range venue.SourceEndpoints() {
		printEndpoint(e)
	}
	fmt.Println("sinks:")
	for _, e := range venue.SinkEndpoints() {
		printEndpoint(e)
	}
	if ports := collector.Ports(); len(ports) > 0 {
		fmt.Println("midi inputs:")
		for _, p := range ports {
			fmt.Printf("  %v\n", p)
		}
	}
	return nil
}

func printEndpoint(e audiohost.EndpointDetails) {
	switch e.Frame.Kind {
	case audiohost.FrameObject:
		fmt.Printf("  %v (event, %v)\n", e.ID, e.Frame.ObjectName)
	default:
		fmt.Printf("  %v (stream, %v channels)\n", e.ID, e.Frame.NumChannels())
	}
}

func printPatch(fs afero.Fs, manifestPath string) error {
	instance := patch.NewInstance(nil, nil, fs, manifestPath)
	description := instance.Description()
	contents, err := description.Marshal()
	if err != nil {
		return fmt.Errorf("could not marshal description: %v", err)
	}
	fmt.Printf("--- %v\n%s", manifestPath, contents)
	if t := instance.LastModificationTime(); !t.IsZero() {
		fmt.Printf("modified: %v\n", t.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Describe the configured audio device and the given patch manifests.\nUsage: %s [flags] [manifest ...]\n", os.Args[0])
	flag.PrintDefaults()
}

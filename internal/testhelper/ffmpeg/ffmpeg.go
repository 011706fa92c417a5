package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// A fake ffmpeg. It decodes by copying the input to stdout, encodes by
// copying stdin to the output file and muxes by concatenating all inputs.
// An output file with the suffix ".fail" makes it exit with 1 after the
// input has been consumed.
func main() {
	args := os.Args[1:]

	if len(args) == 0 {
		os.Exit(2)
	}

	lastArg := args[len(args)-1]

	if lastArg == "-version" {
		fmt.Fprintf(os.Stdout, "ffmpeg version 6.1.1-avstream Copyright (c) 2000-2023 the FFmpeg developers\n")
		fmt.Fprintf(os.Stdout, "built with gcc 13.2.1 (Alpine 13.2.1_git20231014) 20231014\n")
		os.Exit(0)
	}

	if args[0] != "-hide_banner" {
		fmt.Fprintf(os.Stderr, "missing -hide_banner\n")
		os.Exit(2)
	}

	inputs := []string{}
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			inputs = append(inputs, args[i+1])
		}
	}

	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "Output file #0 does not contain any stream\n")
		os.Exit(1)
	}

	switch {
	case inputs[0] == "-":
		encode(lastArg)
	case lastArg == "-":
		decode(inputs[0])
	default:
		mux(inputs, lastArg)
	}
}

func progress(frame, size int) {
	fmt.Fprintf(os.Stderr, "frame=%5d fps= 25 q=-1.0 size=%8dkB time=00:00:01.00 bitrate=N/A speed=1.0x    \r", frame, size/1024)
}

func decode(input string) {
	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: No such file or directory\n", input)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Input #0, fake, from '%s':\n", input)

	for frame := 1; ; frame++ {
		if _, err := io.Copy(os.Stdout, bytes.NewReader(data)); err != nil {
			os.Exit(1)
		}

		progress(frame, len(data)*frame)

		if !strings.HasSuffix(input, ".loop") || len(data) == 0 {
			break
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
}

func encode(output string) {
	fmt.Fprintf(os.Stderr, "Input #0, s16le, from 'pipe:':\n")

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		os.Exit(1)
	}

	progress(1, len(data))
	fmt.Fprintf(os.Stderr, "\n")

	if strings.HasSuffix(output, ".fail") {
		fmt.Fprintf(os.Stderr, "Error while encoding: Invalid argument\n")
		os.Exit(1)
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", output, err)
		os.Exit(1)
	}
}

func mux(inputs []string, output string) {
	out := bytes.Buffer{}

	for _, input := range inputs {
		data, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: No such file or directory\n", input)
			os.Exit(1)
		}

		out.Write(data)
	}

	if err := os.WriteFile(output, out.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", output, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
)

// A fake ffprobe. It prints the ".probe" sidecar of the input file.
func main() {
	args := os.Args[1:]

	input := ""
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			input = args[i+1]
		}
	}

	if len(input) == 0 {
		fmt.Fprintf(os.Stderr, "You have to specify one input file.\n")
		os.Exit(1)
	}

	data, err := os.ReadFile(input + ".probe")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: Invalid data found when processing input\n", input)
		os.Exit(1)
	}

	os.Stdout.Write(data)
}

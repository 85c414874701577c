package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand reads one Data Matrix symbol with libdmtx
const DefaultCommand = "dmtxread -N1 {file}"

// FilePlaceholder marks where the image path goes in the command template
const FilePlaceholder = "{file}"

// execDecoder runs an external decode program as a subprocess. The command
// template is split on whitespace and never passed through a shell.
type execDecoder struct {
	name string
	args []string
}

// NewExecDecoder creates a decoder that runs command. The image path replaces
// every {file} argument, or is appended when there is none.
func NewExecDecoder(command string) (Decoder, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	fields := strings.Fields(command)
	return &execDecoder{name: fields[0], args: fields[1:]}, nil
}

func (d *execDecoder) Name() string {
	return "exec:" + d.name
}

// Decode runs the program until it exits or ctx ends. Exit status 0 with
// non-empty stdout is a payload; anything else is a failure.
func (d *execDecoder) Decode(ctx context.Context, imagePath string) (*Payload, error) {
	binary, err := exec.LookPath(d.name)
	if err != nil {
		return nil, unavailable(d.Name(), CodeNotInstalled, err.Error())
	}

	cmd := exec.CommandContext(ctx, binary, d.argv(imagePath)...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failed(d.Name(), CodeTimeout, ctxErr.Error())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, failed(d.Name(), CodeExitStatus,
				fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String())))
		}
		return nil, failed(d.Name(), CodeExitStatus, err.Error())
	}

	text := strings.TrimRight(stdout.String(), "\r\n")
	if text == "" {
		return nil, failed(d.Name(), CodeNoSymbol, strings.TrimSpace(stderr.String()))
	}
	return &Payload{Text: text, Symbology: "DataMatrix", Decoder: d.Name()}, nil
}

func (d *execDecoder) argv(imagePath string) []string {
	argv := make([]string, 0, len(d.args)+1)
	substituted := false
	for _, a := range d.args {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, imagePath)
			substituted = true
		}
		argv = append(argv, a)
	}
	if !substituted {
		argv = append(argv, imagePath)
	}
	return argv
}

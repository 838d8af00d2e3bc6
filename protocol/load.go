package protocol

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load reads every .cue file under dir as one CUE instance and compiles
// the protocol it declares.
func Load(dir string) (*Protocol, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, CompileErrors{&CompileError{
			Code: ErrNotFound, Path: "protocol",
			Message: fmt.Sprintf("protocol directory not found: %s", dir),
		}}
	}
	if err != nil {
		return nil, CompileErrors{&CompileError{
			Code: ErrNotFound, Path: "protocol",
			Message: fmt.Sprintf("accessing protocol directory: %v", err),
		}}
	}
	if !info.IsDir() {
		return nil, CompileErrors{&CompileError{
			Code: ErrNotFound, Path: "protocol",
			Message: fmt.Sprintf("not a directory: %s", dir),
		}}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, CompileErrors{&CompileError{
			Code: ErrLoad, Path: "protocol",
			Message: fmt.Sprintf("scanning %s: %v", dir, err),
		}}
	}
	if len(files) == 0 {
		return nil, CompileErrors{&CompileError{
			Code: ErrNoFiles, Path: "protocol",
			Message: fmt.Sprintf("no CUE files found in %s", dir),
		}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, CompileErrors{&CompileError{
			Code: ErrLoad, Path: "protocol",
			Message: "no CUE instances loaded",
		}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, CompileErrors{&CompileError{
			Code: ErrLoad, Path: "protocol",
			Message: fmt.Sprintf("loading CUE files: %v", inst.Err),
		}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, CompileErrors{cueError(value, err)}
	}

	return Compile(value)
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

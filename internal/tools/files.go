package tools

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/workspace"
)

// FileInput is one file to create or overwrite.
type FileInput struct {
	Path    string `json:"path" jsonschema:"file path relative to the sandbox working directory"`
	Content string `json:"content" jsonschema:"full file content"`
}

// WriteFilesArgs are the arguments of createOrUpdateFiles.
type WriteFilesArgs struct {
	Files []FileInput `json:"files" jsonschema:"files to write"`
}

// ReadFilesArgs are the arguments of readFiles.
type ReadFilesArgs struct {
	Files []string `json:"files" jsonschema:"paths of the files to read"`
}

// FileContent is one entry of the readFiles result.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// writeOutcome is what the createOrUpdateFiles step records: either the
// full updated files map or the error text.
type writeOutcome struct {
	Files map[string]string `json:"files,omitempty"`
	Error string            `json:"error,omitempty"`
}

// WriteFiles writes every file of one call inside a single durable step and
// publishes the merged map to the run state only if the step succeeded.
func WriteFiles() (Tool, error) {
	return newTyped("createOrUpdateFiles", "Create or Update files in the sandbox", runWriteFiles)
}

func runWriteFiles(ctx context.Context, rc *RunContext, args WriteFilesArgs) Result {
	out, err := durable.Step(ctx, rc.Steps, "createOrUpdateFiles", func(ctx context.Context) (writeOutcome, error) {
		updated := rc.State.Files()
		h, err := rc.connect(ctx)
		if err != nil {
			return writeOutcome{Error: "Error: " + err.Error()}, nil
		}
		for _, f := range args.Files {
			if err := h.WriteFile(ctx, f.Path, f.Content); err != nil {
				if ctx.Err() != nil {
					return writeOutcome{}, ctx.Err()
				}
				return writeOutcome{Error: "Error: " + err.Error()}, nil
			}
			updated[f.Path] = f.Content
		}
		return writeOutcome{Files: updated}, nil
	})
	if err != nil {
		rc.Log().Warn(ctx, "createOrUpdateFiles step error", zap.Error(err))
		return Failure("Error: " + err.Error())
	}
	if out.Error != "" {
		rc.emit(ctx, events.ToolFinished, map[string]any{"tool": "createOrUpdateFiles", "failed": true})
		return Failure(out.Error)
	}

	if out.Files == nil {
		out.Files = map[string]string{}
	}
	rc.State.SetFiles(out.Files)
	rc.emit(ctx, events.ToolFinished, map[string]any{"tool": "createOrUpdateFiles", "failed": false, "files": len(out.Files)})

	raw, err := json.Marshal(out.Files)
	if err != nil {
		return Failure("Error: " + err.Error())
	}
	return Ok(string(raw))
}

// ReadFiles reads files from the workspace. It never touches run state.
func ReadFiles() (Tool, error) {
	return newTyped("readFiles", "Read files from the sandbox", runReadFiles)
}

func runReadFiles(ctx context.Context, rc *RunContext, args ReadFilesArgs) Result {
	res, err := durable.Step(ctx, rc.Steps, "readFiles", func(ctx context.Context) (Result, error) {
		h, err := rc.connect(ctx)
		if err != nil {
			return Failure("Error: " + err.Error()), nil
		}
		contents, err := readAll(ctx, h, args.Files)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			return Failure("Error: " + err.Error()), nil
		}
		raw, err := json.Marshal(contents)
		if err != nil {
			return Failure("Error: " + err.Error()), nil
		}
		return Ok(string(raw)), nil
	})
	if err != nil {
		rc.Log().Warn(ctx, "readFiles step error", zap.Error(err))
		return Failure("Error: " + err.Error())
	}
	rc.emit(ctx, events.ToolFinished, map[string]any{"tool": "readFiles", "failed": res.Failed})
	return res
}

func readAll(ctx context.Context, h workspace.Handle, paths []string) ([]FileContent, error) {
	contents := make([]FileContent, 0, len(paths))
	for _, p := range paths {
		content, err := h.ReadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		contents = append(contents, FileContent{Path: p, Content: content})
	}
	return contents, nil
}

func runIn(ctx context.Context, h workspace.Handle, command string, onStdout, onStderr workspace.OutputFunc) (string, error) {
	res, err := h.RunCommand(ctx, command, onStdout, onStderr)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

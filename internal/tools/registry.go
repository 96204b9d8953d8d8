package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dantiel/aethercodex/internal/core"
)

// Control-signal primitive names. The oracle adapter intercepts calls to
// these and surfaces them as structured completion/rejection signals
// instead of dispatching the handlers.
const (
	NameCompleteStep = "complete_step"
	NameRejectStep   = "reject_step"
)

// Registry supplies the base tool bindings and their mutating
// classification.
type Registry struct {
	baseDir string
	store   core.TaskStore
	sink    core.NotificationSink
	tools   []core.Tool
}

// NewRegistry builds the registry. File tools are confined to baseDir;
// the create_task tool persists through store and announces new tasks
// on sink. Both collaborators may be nil.
func NewRegistry(baseDir string, store core.TaskStore, sink core.NotificationSink) *Registry {
	r := &Registry{baseDir: baseDir, store: store, sink: sink}
	r.tools = []core.Tool{
		{
			Name:        NameCompleteStep,
			Description: "Report the current phase explicitly finished, optionally with a result.",
			Control:     true,
			Params: core.ParamSchema{
				"result": {Type: "string", Description: "Result text for the completed phase"},
			},
			Handler: func(context.Context, map[string]interface{}) (string, error) {
				return "step completion recorded", nil
			},
		},
		{
			Name:        NameRejectStep,
			Description: "Reject the current phase, optionally naming a reason and a restart step.",
			Control:     true,
			Params: core.ParamSchema{
				"reason":       {Type: "string", Description: "Why the phase was rejected"},
				"restart_step": {Type: "integer", Description: "Step ordinal to restart from"},
			},
			Handler: func(context.Context, map[string]interface{}) (string, error) {
				return "step rejection recorded", nil
			},
		},
		{
			Name:        "read_file",
			Description: "Read a file relative to the workspace root.",
			Params: core.ParamSchema{
				"path": {Type: "string", Description: "Workspace-relative file path", Required: true},
			},
			Handler: r.readFile,
		},
		{
			Name:        "list_dir",
			Description: "List directory entries relative to the workspace root.",
			Params: core.ParamSchema{
				"path": {Type: "string", Description: "Workspace-relative directory path"},
			},
			Handler: r.listDir,
		},
		{
			Name:        "write_file",
			Description: "Write a file relative to the workspace root.",
			Mutating:    true,
			Params: core.ParamSchema{
				"path":    {Type: "string", Description: "Workspace-relative file path", Required: true},
				"content": {Type: "string", Description: "Full file content", Required: true},
			},
			Handler: r.writeFile,
		},
		{
			Name:        "rename_file",
			Description: "Rename or move a file within the workspace.",
			Mutating:    true,
			Params: core.ParamSchema{
				"from": {Type: "string", Description: "Current workspace-relative path", Required: true},
				"to":   {Type: "string", Description: "New workspace-relative path", Required: true},
			},
			Handler: r.renameFile,
		},
		{
			Name:        "run_command",
			Description: "Run a shell command in the workspace root.",
			Mutating:    true,
			Params: core.ParamSchema{
				"command": {Type: "string", Description: "Command line to execute", Required: true},
			},
			Handler: r.runCommand,
		},
		{
			Name:        "create_task",
			Description: "Create a child task owned by the current task.",
			Mutating:    true,
			Params: core.ParamSchema{
				"title":   {Type: "string", Description: "Child task title", Required: true},
				"plan":    {Type: "string", Description: "Child task plan"},
				"variant": {Type: "string", Description: "Workflow variant: full, simple or analysis"},
				"parent":  {Type: "string", Description: "Owning task id", Required: true},
			},
			Handler: r.createTask,
		},
	}
	return r
}

// Tools returns the full tool set, ungated.
func (r *Registry) Tools() []core.Tool {
	return r.tools
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return core.Tool{}, false
}

// resolve confines a workspace-relative path under the base directory.
func (r *Registry) resolve(rel string) (string, error) {
	abs := filepath.Join(r.baseDir, filepath.Clean("/"+rel))
	if abs != r.baseDir && !strings.HasPrefix(abs, r.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace", rel)
	}
	return abs, nil
}

func (r *Registry) readFile(_ context.Context, args map[string]interface{}) (string, error) {
	path, err := r.resolve(args["path"].(string))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Registry) listDir(_ context.Context, args map[string]interface{}) (string, error) {
	rel := "."
	if v, ok := args["path"].(string); ok && v != "" {
		rel = v
	}
	path, err := r.resolve(rel)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (r *Registry) writeFile(_ context.Context, args map[string]interface{}) (string, error) {
	path, err := r.resolve(args["path"].(string))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(args["content"].(string)), 0o640); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %s", args["path"]), nil
}

func (r *Registry) renameFile(_ context.Context, args map[string]interface{}) (string, error) {
	from, err := r.resolve(args["from"].(string))
	if err != nil {
		return "", err
	}
	to, err := r.resolve(args["to"].(string))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o750); err != nil {
		return "", err
	}
	if err := os.Rename(from, to); err != nil {
		return "", err
	}
	return fmt.Sprintf("renamed %s to %s", args["from"], args["to"]), nil
}

func (r *Registry) runCommand(ctx context.Context, args map[string]interface{}) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", args["command"].(string))
	cmd.Dir = r.baseDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command failed: %w\n%s", err, out)
	}
	return string(out), nil
}

func (r *Registry) createTask(ctx context.Context, args map[string]interface{}) (string, error) {
	if r.store == nil {
		return "", fmt.Errorf("task store not configured")
	}
	variant := core.VariantSimple
	if v, ok := args["variant"].(string); ok && v != "" {
		parsed, err := core.ParseVariant(v)
		if err != nil {
			return "", err
		}
		variant = parsed
	}
	plan, _ := args["plan"].(string)
	child, err := r.store.Create(ctx, core.CreateTaskParams{
		Title:    args["title"].(string),
		Plan:     plan,
		Variant:  variant,
		ParentID: core.TaskID(args["parent"].(string)),
	})
	if err != nil {
		return "", err
	}
	if r.sink != nil {
		// Sink failures never block creation.
		_ = r.sink.TaskCreated(ctx, child)
	}
	return fmt.Sprintf("created task %s", child.ID), nil
}

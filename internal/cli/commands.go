package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/hpyharness/internal/presentation/tui"
	"github.com/aretw0/hpyharness/pkg/adapters/memory"
	"github.com/aretw0/hpyharness/pkg/domain"
)

// ReadTemplate reads a template from path, or from stdin when path is "-".
func ReadTemplate(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read template from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

func readExtras(paths []string) ([]string, error) {
	extras := make([]string, 0, len(paths))
	for _, p := range paths {
		src, err := ReadTemplate(p, nil)
		if err != nil {
			return nil, err
		}
		extras = append(extras, src)
	}
	return extras, nil
}

// ExpandRequest is the input of RunExpand.
type ExpandRequest struct {
	Template string
	Name     string
	// Render highlights the output with glamour.
	Render bool
}

// RunExpand writes the expanded C source of one template to w.
func RunExpand(opts Options, req ExpandRequest, w io.Writer) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	h := app.Harness
	out, err := h.Expand(req.Template, req.Name)
	if err != nil {
		return err
	}
	if req.Render {
		out, err = tui.RenderSource(tui.NewRenderer(), out)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// BuildRequest is the input of RunBuild and RunMake.
type BuildRequest struct {
	Template string
	Name     string
	Extras   []string // paths of auxiliary templates
}

// RunBuild compiles a template and prints the artifact path.
func RunBuild(ctx context.Context, opts Options, req BuildRequest, w io.Writer) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	h := app.Harness
	extras, err := readExtras(req.Extras)
	if err != nil {
		return err
	}

	status := tui.NewStatus(w)
	artifact, err := h.CompileModule(ctx, req.Template, req.Name, extras...)
	if err != nil {
		reportBuildError(status, err)
		return err
	}
	status.Success("built %s (%s)", req.Name, h.Config().ABI)
	_, err = fmt.Fprintln(w, artifact)
	return err
}

// RunMake compiles a template and loads it into an in-memory host to check
// that the artifact is importable.
func RunMake(ctx context.Context, opts Options, req BuildRequest, w io.Writer) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	h := app.Harness
	extras, err := readExtras(req.Extras)
	if err != nil {
		return err
	}

	status := tui.NewStatus(w)
	mod, err := h.MakeModule(ctx, req.Template, req.Name, extras...)
	if err != nil {
		reportBuildError(status, err)
		return err
	}
	status.Success("loaded %s from %s", mod.Name, mod.Spec.Origin)
	if a, ok := mod.Handle.(memory.Artifact); ok {
		status.Info("%s  %d bytes  sha256:%s", a.Path, a.Size, a.SHA256)
	}
	return nil
}

func reportBuildError(status *tui.Status, err error) {
	var be *domain.BuildError
	if errors.As(err, &be) {
		status.Failure("build of %s failed", be.Module)
		if be.Diagnostics != "" {
			status.Info("%s", be.Diagnostics)
		}
		return
	}
	status.Failure("%v", err)
}

// RunHistory prints recent builds and loads recorded in Redis. Without a
// module it lists the modules that have history.
func RunHistory(ctx context.Context, opts Options, module string, limit int, w io.Writer) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.History == nil {
		return errors.New("history requires redis.addr to be configured")
	}

	if module == "" {
		mods, err := app.History.Modules(ctx)
		if err != nil {
			return err
		}
		for _, m := range mods {
			fmt.Fprintln(w, m)
		}
		return nil
	}

	recs, err := app.History.Recent(ctx, module, limit)
	if err != nil {
		return err
	}
	status := tui.NewStatus(w)
	for _, r := range recs {
		detail := r.Artifact
		if r.ABI != "" {
			detail = fmt.Sprintf("%s %s %s", r.ABI, r.Duration, r.Artifact)
		}
		if r.Error != "" {
			status.Failure("%s %s %s: %s", r.Timestamp.Format(time.RFC3339), r.Type, r.Module, r.Error)
			continue
		}
		status.Success("%s %s %s %s", r.Timestamp.Format(time.RFC3339), r.Type, r.Module, detail)
	}
	return nil
}

package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// FileResult describes a run whose output was written to a local path.
type FileResult struct {
	JobID  string `json:"job_id"`
	Method string `json:"method"`
	Output string `json:"output_path"`
	Size   int64  `json:"size"`
}

// RunFile defaces the volume at inputPath into outputPath. An empty outputPath
// writes OutputName(method) next to the input. The output is renamed into place
// only after a complete copy, so a failed run never leaves a partial file.
func (s *Service) RunFile(ctx context.Context, inputPath, outputPath, method, subject string) (FileResult, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileResult{}, invalidInput("input file %s does not exist", inputPath)
		}
		return FileResult{}, errors.Wrap(err, "open input")
	}
	defer in.Close()

	if info, err := in.Stat(); err == nil && info.IsDir() {
		return FileResult{}, invalidInput("input %s is a directory", inputPath)
	}

	var res FileResult
	err = s.Execute(ctx, Request{
		Filename: filepath.Base(inputPath),
		Method:   method,
		Body:     in,
		Subject:  subject,
	}, func(a Artifact) error {
		dest := outputPath
		if dest == "" {
			dest = filepath.Join(filepath.Dir(inputPath), a.DownloadName)
		}
		if err := SaveTo(dest, a.File); err != nil {
			return err
		}
		res = FileResult{JobID: a.JobID, Method: a.Method, Output: dest, Size: a.Size}
		return nil
	})
	return res, err
}

// SaveTo copies r to dest through a temporary sibling file and renames it into place.
func SaveTo(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".deface-*.partial")
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	tmpName := tmp.Name()

	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, dest)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "write output %s", dest)
	}
	return nil
}

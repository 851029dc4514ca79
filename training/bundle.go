package training

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// BuildSourceBundle packages an entry-point script into the gzipped tarball
// layout the framework container expects: the script sits at the archive
// root under its base name. The caller uploads the bundle to S3 and passes
// its URI through the sagemaker_submit_directory hyperparameter.
func BuildSourceBundle(entryPointPath string) ([]byte, error) {
	content, err := os.ReadFile(entryPointPath)
	if err != nil {
		return nil, errors.Wrapf(err, "training.BuildSourceBundle: read %s", entryPointPath)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	hdr := &tar.Header{
		Name: filepath.Base(entryPointPath),
		Mode: 0o755,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, errors.Wrap(err, "training.BuildSourceBundle: tar header")
	}
	if _, err := tw.Write(content); err != nil {
		return nil, errors.Wrap(err, "training.BuildSourceBundle: tar body")
	}
	if err := tw.Close(); err != nil {
		return nil, errors.Wrap(err, "training.BuildSourceBundle: close tar")
	}
	if err := gw.Close(); err != nil {
		return nil, errors.Wrap(err, "training.BuildSourceBundle: close gzip")
	}
	return buf.Bytes(), nil
}

// ReadSourceBundle extracts the named file from a gzipped tarball.
func ReadSourceBundle(bundle []byte, name string) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(bundle))
	if err != nil {
		return nil, errors.Wrap(err, "training.ReadSourceBundle: gzip")
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "training.ReadSourceBundle: tar")
		}
		if hdr.Name == name {
			content, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrap(err, "training.ReadSourceBundle: read entry")
			}
			return content, nil
		}
	}
	return nil, errors.NewValueError("training.ReadSourceBundle", "no such entry: "+name)
}

package aam

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/esimov/aam/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// validExtensions lists the supported image file types.
var validExtensions = []string{".jpg", ".png", ".jpeg", ".bmp", ".gif", ".tif", ".tiff"}

// Ops describes the source and destination of a fitting run. Src and Dst are
// files, directories, or PipeName for stdin/stdout. Src may also be a URL.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int
}

// result holds the outcome of the fitting process on one image.
type result struct {
	path string
	err  error
}

// Execute fits the model on the image or the directory of images described by
// op. Every image gets its own matching session; directories are processed by
// a bounded pool of workers.
func (p *Processor) Execute(ctx context.Context, op *Ops) error {
	log := p.logger()
	if p.Spinner == nil {
		msg := fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ AAM", utils.StatusMessage),
			utils.DecorateText("⇢ fitting the appearance model...", utils.DefaultMessage),
		)
		p.Spinner = utils.NewSpinner(msg, time.Millisecond*80, true)
	}

	src := op.Src
	var fs os.FileInfo
	var err error

	// Check if source path is a local image or URL.
	if utils.IsValidUrl(op.Src) {
		f, err := utils.DownloadImage(ctx, op.Src)
		if f != nil {
			defer os.Remove(f.Name())
			defer f.Close()
		}
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
		src = f.Name()
		fs, err = f.Stat()
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
	} else {
		// Check if the source is a pipe name or a regular file.
		if op.Src == op.PipeName {
			fs, err = os.Stdin.Stat()
		} else {
			fs, err = os.Stat(op.Src)
		}
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
	}

	now := time.Now()

	switch mode := fs.Mode(); {
	case mode.IsDir():
		if err := os.MkdirAll(op.Dst, 0755); err != nil {
			return errors.Wrap(err, "unable to create the destination directory")
		}

		// Limit the concurrently running workers to maxWorkers.
		workers := op.Workers
		if workers <= 0 || workers > maxWorkers {
			workers = runtime.NumCPU()
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := make(chan result)
		paths, errc := walkDir(ctx, op.Src, validExtensions)

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				op.consumer(ctx, p, op.Dst, ch, paths)
			}()
		}

		// Close the channel after the values are consumed.
		go func() {
			defer close(ch)
			wg.Wait()
		}()

		failed := 0
		for res := range ch {
			if res.err != nil {
				failed++
			}
			op.printOpStatus(res.path, res.err)
		}
		if err := <-errc; err != nil {
			return err
		}
		if failed > 0 {
			return errors.Errorf("%d image(s) could not be processed", failed)
		}

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0:
		ext := strings.ToLower(filepath.Ext(op.Dst))
		if !utils.Contains(validExtensions, ext) && op.Dst != op.PipeName {
			return errors.Errorf("%v file type not supported", ext)
		}

		err := op.process(ctx, p, src, op.Dst)
		op.printOpStatus(op.Dst, err)
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("unsupported source %s", op.Src)
	}

	log.Info("execution finished", zap.Duration("elapsed", time.Since(now)))
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n",
		utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

// consumer reads the path names from the paths channel and fits the model on each image.
func (op *Ops) consumer(
	ctx context.Context,
	p *Processor,
	dest string,
	res chan<- result,
	paths <-chan string,
) {
	for src := range paths {
		dst := filepath.Join(dest, filepath.Base(src))
		err := op.process(ctx, p, src, dst)

		select {
		case <-ctx.Done():
			return
		case res <- result{path: src, err: err}:
		}
	}
}

// process runs the processor over the source image and writes the result.
func (op *Ops) process(ctx context.Context, p *Processor, in, out string) error {
	successMsg := fmt.Sprintf("%s %s %s",
		utils.DecorateText("⚡ AAM", utils.StatusMessage),
		utils.DecorateText("⇢", utils.DefaultMessage),
		utils.DecorateText("the model has been fitted successfully ✔", utils.SuccessMessage),
	)
	errorMsg := fmt.Sprintf("%s %s %s",
		utils.DecorateText("⚡ AAM", utils.StatusMessage),
		utils.DecorateText("fitting the model failed...", utils.DefaultMessage),
		utils.DecorateText("✘", utils.ErrorMessage),
	)

	src, dst, err := op.pathToFile(in, out)
	if err != nil {
		return err
	}
	defer func() {
		if f, ok := src.(*os.File); ok && f != os.Stdin {
			f.Close()
		}
	}()

	p.Spinner.Start()
	err = p.ProcessContext(ctx, src, dst)

	if f, ok := dst.(*os.File); ok && f != os.Stdout {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			// remove the generated image file in case of an error
			os.Remove(f.Name())
		}
	}
	if err != nil {
		p.Spinner.Stop(errorMsg)
	} else {
		p.Spinner.Stop(successMsg)
	}
	return err
}

// pathToFile converts the source and destination paths to readable and writable
// files. The source is closed again if the destination cannot be opened.
func (op *Ops) pathToFile(in, out string) (src io.Reader, dst io.Writer, err error) {
	// Check if the source is a pipe name or a regular file.
	if in == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, nil, errors.New("`-` should be used with a pipe for stdin")
		}
		src = os.Stdin
	} else {
		f, err := os.Open(in)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unable to open the source file")
		}
		defer func() {
			if dst == nil {
				f.Close()
			}
		}()
		src = f
	}

	// Check if the destination is a pipe name or a regular file.
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, nil, errors.New("`-` should be used with a pipe for stdout")
		}
		return src, os.Stdout, nil
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to create the destination file")
	}
	return src, f, nil
}

// printOpStatus displays the relevant information about the fitting process.
func (op *Ops) printOpStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s%s",
			utils.DecorateText("\nError fitting the model on "+filepath.Base(fname), utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
		return
	}
	if fname != op.PipeName {
		fmt.Fprintf(os.Stderr, "\nThe image has been saved as: %s %s\n\n",
			utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported image to a new channel.
// It finishes when ctx is cancelled.
func walkDir(ctx context.Context, src string, srcExts []string) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !utils.Contains(srcExts, strings.ToLower(filepath.Ext(f.Name()))) {
				return nil
			}
			select {
			case <-ctx.Done():
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

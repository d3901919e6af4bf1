package pipeline

import (
	"context"

	"github.com/nvr-ai/go-attendance/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProcessFolder processes every image directly inside dir, up to Workers at a
// time.
//
// An image that fails is logged and skipped. Results keep the sorted file
// order of dir, so the last element is the last image by name.
//
// Arguments:
//   - ctx: Cancels the remaining images.
//   - dir: The folder of images.
//
// Returns:
//   - []*Result: The successfully processed images.
//   - error: An error if dir cannot be read or ctx is cancelled.
func (p *Pipeline) ProcessFolder(ctx context.Context, dir string) ([]*Result, error) {
	paths, err := util.ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		p.log.WithField("folder", dir).Warn("no images found")
		return nil, nil
	}

	slots := make([]*Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := p.ProcessImage(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				p.log.WithField("image", path).WithError(err).Error("skipping image")
				return nil
			}
			slots[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}
	p.log.WithFields(logrus.Fields{"folder": dir, "processed": len(results), "images": len(paths)}).Info("processed folder")
	return results, nil
}

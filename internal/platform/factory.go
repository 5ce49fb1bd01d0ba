package platform

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/notetaker/pkg/adapters/fs"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/adapters/remote"
	"github.com/aretw0/notetaker/pkg/core"
)

// Notebook pairs a reconciler with the service it mirrors.
type Notebook struct {
	*core.Reconciler
	Remote core.RemoteService

	owned bool
}

// Close releases the subscriptions, then the service if the notebook opened it.
func (n *Notebook) Close() error {
	err := n.Reconciler.Close()
	if closer, ok := n.Remote.(io.Closer); ok && n.owned {
		err = errors.Join(err, closer.Close())
	}
	return err
}

// New opens the configured service and wraps it in a reconciler. The
// reconciler is neither started nor loaded; callers decide when to subscribe.
//
//	nb, err := notetaker.New(notetaker.WithDir("./notes"))
func New(opts ...Option) (*Notebook, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	svc, owned, err := open(o)
	if err != nil {
		return nil, err
	}

	r := core.NewReconciler(svc, core.Config{
		Mode:         o.mode,
		Logger:       o.logger,
		EventBuffer:  o.eventBuffer,
		ErrorHandler: o.errorHandler,
	})
	return &Notebook{Reconciler: r, Remote: svc, owned: owned}, nil
}

// OpenRemote opens the configured service alone, e.g. to serve it over HTTP.
// The caller owns the returned service.
func OpenRemote(opts ...Option) (core.RemoteService, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	svc, _, err := open(o)
	return svc, err
}

func open(o *options) (core.RemoteService, bool, error) {
	if o.remote != nil {
		return o.remote, false, nil
	}

	switch o.adapter {
	case AdapterFS, "":
		svc, err := openFS(o)
		if err != nil {
			return nil, false, err
		}
		return svc, true, nil
	case AdapterRemote:
		svc, err := remote.NewClient(remote.Config{
			Endpoint: o.endpoint,
			Token:    o.token,
			Logger:   o.logger,
		})
		if err != nil {
			return nil, false, err
		}
		return svc, true, nil
	case AdapterMemory:
		return memory.NewService(), true, nil
	}
	return nil, false, fmt.Errorf("unknown adapter: %s", o.adapter)
}

// openFS resolves the notes directory and initializes the fs adapter.
func openFS(o *options) (*fs.Service, error) {
	// Read-only access is inherently safe; the sandbox only guards writes.
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	dir := ResolveDir(o.dir, useTemp)

	if o.logger != nil {
		switch {
		case useTemp && dir != o.dir:
			o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", o.dir, "resolved_path", dir)
		case IsDevRun() && bypassSafety && !o.readOnly:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", dir)
		}
	}

	svc := fs.NewService(fs.Config{
		Path:         dir,
		MustExist:    o.mustExist,
		Pattern:      o.pattern,
		ReadOnly:     o.readOnly,
		Logger:       o.logger,
		ErrorHandler: o.errorHandler,
	})
	if err := svc.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return svc, nil
}

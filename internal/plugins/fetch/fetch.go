// Package fetch downloads http and https URLs handed to it as entities.
// Downloads run in their own goroutines and report back on the main loop.
package fetch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/leechcore/internal/dock"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
)

// ID is the plugin's unique ID.
const ID = "org.leechcore.fetch"

// DockID is the ID of the Downloads dock.
const DockID = ID + ".downloads"

// Finished describes a completed or failed download.
type Finished struct {
	Entity entity.Entity
	URL    string
	Path   string
	Bytes  int64
	Err    error
}

// DownloadFinishedNotification fires on the main loop when a download ends.
// Cancelling it suppresses the user notification.
var DownloadFinishedNotification = hooks.Define[Finished](hooks.IDDownloadFinishedNotification)

var errTooLarge = errors.New("download exceeds size limit")

const maxNameTries = 1000

// Options configures the downloader.
type Options struct {
	Dir      string
	MaxBytes int64
}

// Download is the state of one transfer.
type Download struct {
	ID      int       `json:"id"`
	URL     string    `json:"url"`
	Path    string    `json:"path,omitempty"`
	Bytes   int64     `json:"bytes"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
	Started time.Time `json:"started"`
}

// Plugin is the downloader.
type Plugin struct {
	opts Options
	px   plugin.Proxy
	log  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	downloads map[int]*Download
}

// New creates the plugin.
func New(opts Options) *Plugin {
	return &Plugin{opts: opts, log: logging.Nop(), downloads: make(map[int]*Download)}
}

func (p *Plugin) ID() string   { return ID }
func (p *Plugin) Name() string { return "Fetch" }
func (p *Plugin) Info() string { return "Downloads http and https URLs" }

func (p *Plugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapDownloader, plugin.CapEntityHandler, plugin.CapDockProvider}
}

func (p *Plugin) Init(_ context.Context, px plugin.Proxy) error {
	p.px = px
	p.log = px.Log()
	p.ctx, p.cancel = context.WithCancel(context.Background())

	if p.opts.Dir != "" {
		if err := os.MkdirAll(p.opts.Dir, 0o755); err != nil {
			return fmt.Errorf("creating download dir: %w", err)
		}
	}
	if err := px.Entities().RegisterHandler(entity.HandlerFuncs{Could: p.couldHandle, Do: p.handle}); err != nil {
		return err
	}
	return px.Docks().Add(dock.Dock{ID: DockID, Title: "Downloads", Owner: ID}, dock.AreaBottom)
}

func (p *Plugin) SecondInit(context.Context) error { return nil }

// Release cancels running downloads and waits for them.
func (p *Plugin) Release(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) couldHandle(e entity.Entity) entity.TestResult {
	if e.Flags.Has(entity.OnlyHandle) || e.Flags.Has(entity.IsDownloaded) {
		return entity.Unable()
	}
	if _, ok := downloadURL(e); !ok {
		return entity.Unable()
	}
	if e.Flags.Has(entity.OnlyDownload) {
		return entity.Can(entity.PIdeal)
	}
	return entity.Can(entity.PHigh)
}

// handle runs on the main loop, so the request is built here and the
// NetworkAccessManagerCreateRequest hook fires on the loop as well. Only the
// transfer itself runs in the download goroutine.
func (p *Plugin) handle(_ context.Context, e entity.Entity) error {
	u, ok := downloadURL(e)
	if !ok {
		return fmt.Errorf("not a downloadable URL")
	}
	req, err := p.px.Network().NewRequest(p.ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	id, err := p.px.GetID()
	if err != nil {
		return err
	}

	d := &Download{ID: id, URL: u.String(), Started: time.Now()}
	p.mu.Lock()
	p.downloads[id] = d
	p.mu.Unlock()

	dest := p.target(e, u, id)
	p.log.Info().Int("download", id).Str("url", d.URL).Msg("download started")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fin := p.fetch(req, dest)
		fin.URL = d.URL
		fin.Entity = e
		if err := p.px.Post(func(ctx context.Context) { p.finish(ctx, id, fin) }); err != nil {
			p.log.Warn().Err(err).Int("download", id).Msg("cannot report download result")
		}
	}()
	return nil
}

func (p *Plugin) fetch(req *http.Request, dest string) Finished {
	fin := Finished{Path: dest}

	resp, err := p.px.Network().Do(req)
	if err != nil {
		fin.Err = err
		return fin
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fin.Err = fmt.Errorf("unexpected status %s", resp.Status)
		return fin
	}

	f, name, err := create(dest)
	if err != nil {
		fin.Err = err
		return fin
	}
	fin.Path = name

	var body io.Reader = resp.Body
	if p.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, p.opts.MaxBytes+1)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && p.opts.MaxBytes > 0 && n > p.opts.MaxBytes {
		err = errTooLarge
	}
	fin.Bytes = n
	if err != nil {
		fin.Err = err
		_ = os.Remove(name)
	}
	return fin
}

// create opens a new file at dest. An existing file is never overwritten:
// taken names get a " (N)" suffix before the extension.
func create(dest string) (*os.File, string, error) {
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 0; i < maxNameTries; i++ {
		name := dest
		if i > 0 {
			name = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return f, name, err
	}
	return nil, "", fmt.Errorf("no free file name for %s", dest)
}

// finish runs on the main loop.
func (p *Plugin) finish(ctx context.Context, id int, fin Finished) {
	p.mu.Lock()
	if d, ok := p.downloads[id]; ok {
		d.Done = true
		d.Bytes = fin.Bytes
		d.Path = fin.Path
		if fin.Err != nil {
			d.Error = fin.Err.Error()
		}
	}
	p.mu.Unlock()
	if err := p.px.FreeID(id); err != nil {
		p.log.Warn().Err(err).Int("download", id).Msg("freeing download ID")
	}

	if fin.Err != nil {
		p.log.Error().Err(fin.Err).Int("download", id).Str("url", fin.URL).Msg("download failed")
	} else {
		p.log.Info().Int("download", id).Str("path", fin.Path).Int64("bytes", fin.Bytes).Msg("download finished")
	}

	hp := hooks.Fire(p.px.Hooks().Registry(), DownloadFinishedNotification, nil, fin)
	if hp.IsCancelled() || fin.Entity.Flags.Has(entity.DoNotNotifyUser) {
		return
	}

	n := entity.MakeNotification("Download finished", filepath.Base(fin.Path), entity.PInfo)
	if fin.Err != nil {
		n = entity.MakeNotification("Download failed", fin.URL+": "+fin.Err.Error(), entity.PWarning)
	}
	if _, err := p.px.Entities().HandleEntity(ctx, n); err != nil {
		p.log.Warn().Err(err).Msg("dispatching download notification")
	}
}

// Downloads returns every download seen since Init, ordered by ID.
func (p *Plugin) Downloads() []Download {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Download, 0, len(p.downloads))
	for _, d := range p.downloads {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b Download) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// target picks the file a download is written to. The entity location wins
// over the configured directory.
func (p *Plugin) target(e entity.Entity, u *url.URL, id int) string {
	dir := p.opts.Dir
	if e.Location != "" {
		dir = e.Location
	}
	if dir == "" {
		dir = os.TempDir()
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = fmt.Sprintf("download-%d", id)
	}
	return filepath.Join(dir, name)
}

func downloadURL(e entity.Entity) (*url.URL, bool) {
	s, ok := e.PayloadString()
	if !ok {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

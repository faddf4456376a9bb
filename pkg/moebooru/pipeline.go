package moebooru

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"

	"github.com/FalconSN/booruchan/pkg/catalog"
	"github.com/FalconSN/booruchan/pkg/cloudcopy"
	"github.com/FalconSN/booruchan/pkg/config"
	"github.com/FalconSN/booruchan/pkg/fetch"
	"github.com/FalconSN/booruchan/pkg/keywords"
	"github.com/FalconSN/booruchan/pkg/pathutil"
	"github.com/FalconSN/booruchan/pkg/worker"
)

// Pipeline archives one configured platform: it owns its PlatformConfig, a
// shared HTTP client handle, and the send-half of the worker's command
// channel.
type Pipeline struct {
	Name     string
	Root     string
	Config   *config.PlatformConfig
	Client   *http.Client
	Commands chan<- any
	Home     string
	Progress *mpb.Progress
}

// Run executes the outer tag loop. It returns nil once every configured
// tag query has exhausted its page loop, or an error if ctx is cancelled
// first.
func (p *Pipeline) Run(ctx context.Context) error {
	log := logrus.WithField("platform", p.Name)
	for _, tag := range p.Config.Tags {
		log.Infof("%s: %s", p.Name, tag)
		if err := p.runTag(ctx, tag); err != nil {
			return fmt.Errorf("pipeline %s: tag %q: %w", p.Name, tag, err)
		}
	}
	return nil
}

func (p *Pipeline) runTag(ctx context.Context, tag string) error {
	page := 0
	for {
		page++
		posts, typeMap, err := p.fetchPage(ctx, tag, page)
		if err != nil {
			// Transport and decode errors are retried indefinitely: sites
			// occasionally return malformed responses.
			logrus.WithError(err).WithFields(logrus.Fields{"platform": p.Name, "tag": tag, "page": page}).
				Warn("moebooru: list request failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			page--
			continue
		}
		if len(posts) == 0 {
			return nil
		}

		filtered := p.filter(ctx, posts)
		for _, fp := range filtered {
			time.Sleep(time.Duration(p.Config.SleepSec * float64(time.Second)))
			p.postTask(ctx, fp, typeMap)
		}
	}
}

func (p *Pipeline) fetchPage(ctx context.Context, tag string, page int) ([]Post, TagTypeMap, error) {
	root := p.Root
	if root == "" {
		r, ok := config.SiteRoot(p.Name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown platform %q", p.Name)
		}
		root = r
	}

	q := url.Values{}
	q.Set("api_version", "2")
	q.Set("include_tags", "1")
	q.Set("limit", "100")
	q.Set("page", strconv.Itoa(page))
	q.Set("tags", tag)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(p.Config.TimeoutSec*float64(time.Second)))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, root+"?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var listResp listResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, nil, err
	}
	return listResp.Posts, listResp.Tags, nil
}

// filteredPost pairs a post with any prior catalog entry found during the
// filter step.
type filteredPost struct {
	post        Post
	isDuplicate bool
	prior       catalog.Entry
}

// filter drops deleted posts and blacklisted posts (when skip is enabled),
// then checks the catalog for a prior entry for every surviving post.
func (p *Pipeline) filter(ctx context.Context, posts []Post) []filteredPost {
	var out []filteredPost
	for _, post := range posts {
		if post.IsDeleted() {
			continue
		}
		if p.Config.Skip && hasBlacklistedTag(post.TagList(), p.Config.Blacklist) {
			logrus.WithFields(logrus.Fields{"platform": p.Name, "id": post.ID}).Info("dropped: blacklisted tag")
			continue
		}

		reply := make(chan worker.SelectResult, 1)
		p.Commands <- worker.SelectCmd{Platform: p.Name, ID: post.ID, Reply: reply}
		res := <-reply
		if res.Err != nil {
			logrus.WithError(res.Err).Warn("moebooru: select failed")
			continue
		}

		fp := filteredPost{post: post}
		if res.Found {
			fp.isDuplicate = true
			fp.prior = res.Entry
			logrus.WithFields(logrus.Fields{"platform": p.Name, "id": post.ID}).Info("duplicate")
		}
		out = append(out, fp)
	}
	return out
}

// fatalIfToolUnavailable aborts the process when err indicates the external
// copy tool itself could not be run (missing from PATH, not executable):
// that is a required runtime dependency, not a per-post failure, and
// retrying or skipping the post would just repeat the same failure for
// every subsequent post.
func fatalIfToolUnavailable(err error) {
	if errors.Is(err, cloudcopy.ErrToolUnavailable) {
		logrus.WithError(err).Fatal("moebooru: cloud copy tool unavailable, aborting")
	}
}

func hasBlacklistedTag(tags, blacklist []string) bool {
	set := make(map[string]struct{}, len(blacklist))
	for _, b := range blacklist {
		set[b] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// postTask runs the download/compress/upload/record sequence for one post.
func (p *Pipeline) postTask(ctx context.Context, fp filteredPost, typeMap TagTypeMap) {
	post := fp.post
	kw := buildKeywords(p.Name, post, typeMap)

	targetDir, err := keywords.Format(p.Config.TargetDir, kw)
	if err != nil {
		logrus.WithError(err).Error("moebooru: formatting target_dir")
		return
	}
	targetDir = keywords.SanitizeDir(targetDir, p.Config.DirnameRepl)
	filename, err := keywords.Format(p.Config.Filename, kw)
	if err != nil {
		logrus.WithError(err).Error("moebooru: formatting filename")
		return
	}
	filename = keywords.Sanitize(filename, p.Config.FilenameRepl)
	fullPath := targetDir + "/" + filename

	entry := catalog.Entry{
		ID:   post.ID,
		MD5:  post.MD5,
		Path: fullPath,
	}
	if post.Source != "" {
		entry.Source = sql.NullString{String: post.Source, Valid: true}
	}
	if post.Tags != "" {
		entry.Tags = sql.NullString{String: post.Tags, Valid: true}
	}

	if fp.isDuplicate {
		p.reconcileDuplicate(ctx, fp.prior, entry)
		return
	}

	p.freshDownloadAndArchive(ctx, post, kw, entry, []string{targetDir, filename})
}

// reconcileDuplicate handles a post that already has a catalog entry: if
// the tentative entry matches the prior one exactly, nothing happens; if
// paths differ, the existing file (and derivative) are moved to their new
// location and the catalog is updated.
func (p *Pipeline) reconcileDuplicate(ctx context.Context, prior, tentative catalog.Entry) {
	if prior.Equal(tentative) {
		return
	}

	if prior.Path != tentative.Path {
		if p.Config.ToCloud {
			if err := cloudcopy.MoveTo(ctx, p.Config.Cloud+":"+prior.Path, p.Config.Cloud+":"+tentative.Path); err != nil {
				fatalIfToolUnavailable(err)
				logrus.WithError(err).Error("moebooru: cloud move on duplicate reconciliation failed, not recording entry")
				return
			}
		} else if err := pathutil.Move(prior.Path, tentative.Path); err != nil {
			logrus.WithError(err).Error("moebooru: local move on duplicate reconciliation failed, not recording entry")
			return
		}
	}

	// A failed derivative move must not let a compress_path pointing at a
	// location with no file land in the catalog, so bail out before the
	// Insert below rather than merely logging and continuing.
	if prior.CompressPath.Valid && tentative.CompressPath.Valid && prior.CompressPath.String != tentative.CompressPath.String {
		if p.Config.ToCloud {
			if err := cloudcopy.MoveTo(ctx, p.Config.Cloud+":"+prior.CompressPath.String, p.Config.Cloud+":"+tentative.CompressPath.String); err != nil {
				fatalIfToolUnavailable(err)
				logrus.WithError(err).Error("moebooru: cloud move of derivative failed, not recording entry")
				return
			}
		} else if err := pathutil.Move(prior.CompressPath.String, tentative.CompressPath.String); err != nil {
			logrus.WithError(err).Error("moebooru: local move of derivative failed, not recording entry")
			return
		}
	}

	p.Commands <- worker.InsertCmd{Platform: p.Name, Entry: tentative}
}

func (p *Pipeline) freshDownloadAndArchive(ctx context.Context, post Post, kw keywords.Keywords, entry catalog.Entry, destParts []string) {
	localPath, err := fetch.Download(ctx, p.Client, post.FileURL, fetch.Options{
		Parts:      destParts,
		Fallback:   p.Home,
		Timeout:    time.Duration(p.Config.TimeoutSec * float64(time.Second)),
		Retries:    p.Config.Retries,
		RetrySleep: time.Duration(p.Config.RetrySleepSec * float64(time.Second)),
		Progress:   p.Progress,
	})
	if err != nil {
		logrus.WithError(err).WithField("id", post.ID).Error("moebooru: download failed, skipping post")
		return
	}
	logrus.WithFields(logrus.Fields{"platform": p.Name, "id": post.ID, "path": localPath}).Info("downloaded")

	if p.Config.Compress != nil {
		p.compress(ctx, post, kw, localPath, &entry)
	}

	if p.Config.ToCloud {
		cloudDest := p.Config.Cloud + ":" + entry.Path
		if err := cloudcopy.CopyTo(ctx, localPath, cloudDest, p.Config.Delete); err != nil {
			fatalIfToolUnavailable(err)
			logrus.WithError(err).WithField("id", post.ID).Error("moebooru: upload failed, skipping post")
			return
		}
	}

	p.Commands <- worker.InsertCmd{Platform: p.Name, Entry: entry}
}

func (p *Pipeline) compress(ctx context.Context, post Post, kw keywords.Keywords, localPath string, entry *catalog.Entry) {
	c := p.Config.Compress
	compDir, err := keywords.Format(c.TargetDir, kw)
	if err != nil {
		logrus.WithError(err).Error("moebooru: formatting compress.target_dir")
		return
	}
	compDir = keywords.SanitizeDir(compDir, p.Config.DirnameRepl)
	compFilename, err := keywords.Format(c.Filename, kw)
	if err != nil {
		logrus.WithError(err).Error("moebooru: formatting compress.filename")
		return
	}
	compFilename = keywords.Sanitize(compFilename, p.Config.FilenameRepl)
	destParts := []string{compDir, compFilename}

	var fallback string
	if p.Config.ToCloud {
		fallback = p.Home
	}

	reply := make(chan worker.ImageResult, 1)
	p.Commands <- worker.ImageCmd{
		Src:       localPath,
		DestParts: destParts,
		MaxW:      c.Size[0],
		MaxH:      c.Size[1],
		Fallback:  fallback,
		Reply:     reply,
	}
	res := <-reply
	if res.Err != nil || !res.Found {
		return
	}

	if p.Config.ToCloud {
		joined := strings.Join(destParts, "/")
		cloudDest := p.Config.Cloud + ":" + joined
		if err := cloudcopy.CopyTo(ctx, res.Path, cloudDest, false); err != nil {
			fatalIfToolUnavailable(err)
			logrus.WithError(err).WithField("id", post.ID).Error("moebooru: derivative upload failed")
			return
		}
		entry.CompressPath = sql.NullString{String: joined, Valid: true}
	} else {
		entry.CompressPath = sql.NullString{String: res.Path, Valid: true}
	}
}

package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

const (
	articleContentFile = "content.json"
	articleCoverFile   = "cover.png"
	articleMiddleFile  = "middle.png"
	articleAudioFile   = "audio.mp3"

	DefaultArticleAssetURL = "/data/english/artikel"
)

// Article is assembled from the files the generation engine drops into an
// article folder. Only content.json is parsed; images and audio are probed
// for presence.
type Article struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Words          json.RawMessage `json:"words"`
	Content        string          `json:"content"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	MiddleImageURL string          `json:"middleImageUrl,omitempty"`
	AudioURL       string          `json:"audioUrl,omitempty"`
	Complete       bool            `json:"complete"`
	CreatedAt      string          `json:"createdAt,omitempty"`
}

func (a Article) DocumentID() string {
	return a.ID
}

type articleContent []struct {
	Output *struct {
		Title string          `json:"Title"`
		Words json.RawMessage `json:"Words"`
		Body  string          `json:"Body"`
	} `json:"output"`
}

type ArticleOptions struct {
	BaseDir string
	// AssetURL prefixes the asset links returned for an article.
	AssetURL string
	Logger   *log.Logger
}

type Articles struct {
	store    *entitystore.Store[Article]
	assetURL string
}

func NewArticles(opts ArticleOptions) (*Articles, error) {
	assetURL := strings.TrimRight(strings.TrimSpace(opts.AssetURL), "/")
	if assetURL == "" {
		assetURL = DefaultArticleAssetURL
	}
	a := &Articles{assetURL: assetURL}
	store, err := entitystore.New(entitystore.Options[Article]{
		BaseDir:           opts.BaseDir,
		Collection:        "articles",
		Layout:            entitystore.FolderLayout{Primary: articleContentFile},
		RequiredArtifacts: []string{articleContentFile, articleCoverFile},
		IndexCompleteOnly: true,
		Placement:         entitystore.Append,
		SortOrder:         entitystore.Ascending,
		Loader:            a.load,
		Logger:            opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.store = store
	return a, nil
}

func (a *Articles) load(dir, id string) (Article, error) {
	article := Article{ID: id, Words: json.RawMessage("[]")}
	if info, err := os.Stat(dir); err == nil {
		article.CreatedAt = formatTime(info.ModTime())
	}

	var content articleContent
	err := entitystore.ReadJSON(filepath.Join(dir, articleContentFile), &content)
	switch {
	case errors.Is(err, entitystore.ErrNotFound):
		// Pending: the engine has not written content yet.
	case err != nil:
		return Article{}, err
	case len(content) == 0 || content[0].Output == nil:
		return Article{}, fmt.Errorf("%w: article %s has no output block", entitystore.ErrInvalidInput, id)
	default:
		out := content[0].Output
		article.Title = out.Title
		if article.Title == "" {
			article.Title = "Untitled"
		}
		if len(out.Words) > 0 && string(out.Words) != "null" {
			article.Words = out.Words
		}
		article.Content = out.Body
	}

	base := a.assetURL + "/" + id
	if ok, _ := entitystore.Exists(filepath.Join(dir, articleCoverFile)); ok {
		article.ImageURL = path.Join(base, articleCoverFile)
	}
	if ok, _ := entitystore.Exists(filepath.Join(dir, articleMiddleFile)); ok {
		article.MiddleImageURL = path.Join(base, articleMiddleFile)
	}
	if ok, _ := entitystore.Exists(filepath.Join(dir, articleAudioFile)); ok {
		article.AudioURL = path.Join(base, articleAudioFile)
	}
	complete, err := a.store.HasArtifacts(context.Background(), id)
	if err != nil {
		return Article{}, err
	}
	article.Complete = complete
	return article, nil
}

func (a *Articles) Name() string {
	return "articles"
}

func (a *Articles) Base() string {
	return a.store.Base()
}

func (a *Articles) List(ctx context.Context) ([]Article, error) {
	return a.store.List(ctx)
}

func (a *Articles) Get(ctx context.Context, id string) (Article, error) {
	return a.store.Get(ctx, id)
}

// IDs returns the indexed article ids without resolving them.
func (a *Articles) IDs(ctx context.Context) ([]string, error) {
	return a.store.Index().Load(ctx)
}

// CreateFolder reserves an empty folder for content the engine will write.
func (a *Articles) CreateFolder(ctx context.Context, id string) (string, error) {
	if err := a.store.Reserve(ctx, id); err != nil {
		return "", err
	}
	return filepath.Join(a.store.Base(), id), nil
}

func (a *Articles) Reserve(ctx context.Context, id string) error {
	return a.store.Reserve(ctx, id)
}

func (a *Articles) Register(ctx context.Context, id string) error {
	return a.store.Register(ctx, id)
}

func (a *Articles) HasArtifacts(ctx context.Context, id string) (bool, error) {
	return a.store.HasArtifacts(ctx, id)
}

func (a *Articles) Exists(ctx context.Context, id string) (bool, error) {
	return a.store.Exists(ctx, id)
}

func (a *Articles) Delete(ctx context.Context, id string) error {
	return a.store.Delete(ctx, id)
}

func (a *Articles) SyncIndex(ctx context.Context) (entitystore.Report, error) {
	return a.store.SyncIndex(ctx)
}

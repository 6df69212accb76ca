package syncengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/cache"
	"github.com/paymirror/paymirror/internal/pkg/remote"
)

// ErrNoOwnerAccount is returned when no explicit account reference, no
// call credential and no default credential are available. Resolution
// never silently returns nil.
var ErrNoOwnerAccount = errors.New("syncengine: no owner account determinable")

const accountCacheTTL = 12 * time.Hour

// ResolverConfig is the process-wide defaults the resolver falls back to.
// Passed in explicitly so tests can substitute their own.
type ResolverConfig struct {
	// DefaultAPIKey is the process-wide default credential.
	DefaultAPIKey string
	// DefaultAccountID, when set, short-circuits default resolution to a
	// known account ID without calling the remote platform.
	DefaultAccountID string
	// UseSharedCache additionally caches credential associations in redis
	// so sibling processes skip the remote lookup.
	UseSharedCache bool
}

// AccountResolver determines which PlatformAccount owns a remote object.
// An association is resolved once, then cached: in-process always, and in
// the shared cache when configured.
type AccountResolver struct {
	store  Store
	client remote.Client
	cfg    ResolverConfig

	mu             sync.Mutex
	defaultAccount *models.PlatformAccount
	byCredential   map[string]string
}

func NewAccountResolver(store Store, client remote.Client, cfg ResolverConfig) *AccountResolver {
	return &AccountResolver{
		store:        store,
		client:       client,
		cfg:          cfg,
		byCredential: map[string]string{},
	}
}

// Resolve produces the owning PlatformAccount for a partially-populated
// remote object, in priority order: the object's explicit account
// reference, the supplied call credential, then the process default.
func (r *AccountResolver) Resolve(ctx context.Context, data map[string]any, credential string) (*models.PlatformAccount, error) {
	if id := refID(data["account"]); id != "" {
		return r.resolveByID(ctx, id)
	}
	if credential != "" {
		return r.resolveByCredential(ctx, credential)
	}
	return r.ResolveDefault(ctx)
}

// ResolveDefault returns the account owning the process-wide default
// credential, resolving it at most once per process.
func (r *AccountResolver) ResolveDefault(ctx context.Context) (*models.PlatformAccount, error) {
	r.mu.Lock()
	cached := r.defaultAccount
	r.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var (
		account *models.PlatformAccount
		err     error
	)
	switch {
	case r.cfg.DefaultAccountID != "":
		account, err = r.resolveByID(ctx, r.cfg.DefaultAccountID)
	case r.cfg.DefaultAPIKey != "":
		account, err = r.resolveByCredential(ctx, r.cfg.DefaultAPIKey)
	default:
		return nil, ErrNoOwnerAccount
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.defaultAccount = account
	r.mu.Unlock()
	return account, nil
}

// resolveByID returns the locally known account, synthesizing a stub row
// when the ID has never been seen. Details are filled in opportunistically
// from the remote platform; a failed detail fetch keeps the stub.
func (r *AccountResolver) resolveByID(ctx context.Context, id string) (*models.PlatformAccount, error) {
	account, err := r.store.GetAccount(ctx, id)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	account = &models.PlatformAccount{ID: id}
	if data, fetchErr := r.client.GetObject(ctx, "account", id, remote.CallOptions{APIKey: r.cfg.DefaultAPIKey}); fetchErr == nil {
		applyAccountData(account, data)
	} else {
		applog.WithComponent("resolver").WithError(fetchErr).WithField("account", id).
			Warn("could not fetch account details, keeping stub")
	}

	if err := r.store.UpsertAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountResolver) resolveByCredential(ctx context.Context, credential string) (*models.PlatformAccount, error) {
	r.mu.Lock()
	id, ok := r.byCredential[credential]
	r.mu.Unlock()
	if ok {
		return r.resolveByID(ctx, id)
	}

	cacheKey := credentialCacheKey(credential)
	if r.cfg.UseSharedCache {
		if id, err := cache.Get(cacheKey); err == nil && id != "" {
			r.remember(credential, id)
			return r.resolveByID(ctx, id)
		}
	}

	data, err := r.client.GetAccount(ctx, remote.CallOptions{APIKey: credential})
	if err != nil {
		return nil, err
	}
	id = refID(data)
	if id == "" {
		return nil, errors.New("syncengine: remote account response has no id")
	}

	account := &models.PlatformAccount{ID: id}
	applyAccountData(account, data)
	if err := r.store.UpsertAccount(ctx, account); err != nil {
		return nil, err
	}

	r.remember(credential, id)
	if r.cfg.UseSharedCache {
		if err := cache.Set(cacheKey, id, accountCacheTTL); err != nil {
			applog.WithComponent("resolver").WithError(err).Warn("could not cache account association")
		}
	}
	return account, nil
}

func (r *AccountResolver) remember(credential, accountID string) {
	r.mu.Lock()
	r.byCredential[credential] = accountID
	r.mu.Unlock()
}

// credentialCacheKey avoids putting the raw secret into the shared cache.
func credentialCacheKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return "paymirror:account_for_key:" + hex.EncodeToString(sum[:8])
}

func applyAccountData(account *models.PlatformAccount, data map[string]any) {
	if v, ok := data["business_name"].(string); ok {
		account.BusinessName = v
	}
	if v, ok := data["email"].(string); ok {
		account.Email = v
	}
	if v, ok := data["country"].(string); ok {
		account.Country = v
	}
	if v, ok := data["livemode"].(bool); ok {
		account.Livemode = &v
	}
	if created, err := UnixTime(data["created"]); err == nil {
		t := created.(time.Time)
		account.Created = &t
	}
}

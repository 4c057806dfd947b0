package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/domain/repository"
)

// fakeReferenceRepo is an in-memory IReference with compare-and-set consume.
type fakeReferenceRepo struct {
	mu   sync.Mutex
	refs map[string]*model.FileReference
}

func newFakeReferenceRepo() *fakeReferenceRepo {
	return &fakeReferenceRepo{refs: make(map[string]*model.FileReference)}
}

func (f *fakeReferenceRepo) Create(ctx context.Context, ref *model.FileReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *ref
	f.refs[ref.ID] = &copied
	return nil
}

func (f *fakeReferenceRepo) Get(ctx context.Context, id string) (*model.FileReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[id]
	if !ok {
		return nil, model.NewDomainError(model.KindNotFound, "reference not found")
	}
	copied := *ref
	return &copied, nil
}

func (f *fakeReferenceRepo) Consume(ctx context.Context, id string, now time.Time) (*model.FileReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[id]
	if !ok {
		return nil, model.NewDomainError(model.KindNotFound, "reference not found")
	}
	if ref.ConsumedAt != nil {
		return nil, model.NewDomainError(model.KindReferenceInvalid, "reference already consumed")
	}
	if now.After(ref.ExpiresAt) {
		return nil, model.NewDomainError(model.KindReferenceExpired, "reference expired")
	}
	consumed := now
	ref.ConsumedAt = &consumed
	copied := *ref
	return &copied, nil
}

func (f *fakeReferenceRepo) DeleteExpired(ctx context.Context, now time.Time, keepIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := make(map[string]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}
	var removed int64
	for id, ref := range f.refs {
		if ref.ConsumedAt == nil && now.After(ref.ExpiresAt) && !keep[id] {
			delete(f.refs, id)
			removed++
		}
	}
	return removed, nil
}

// fakeAccountRepo is an in-memory IAccount.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.PlatformAccount
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*model.PlatformAccount)}
}

func accountKey(owner, accountID string) string { return owner + "/" + accountID }

func (f *fakeAccountRepo) Upsert(ctx context.Context, a *model.PlatformAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *a
	f.accounts[accountKey(a.Owner, a.ID)] = &copied
	return nil
}

func (f *fakeAccountRepo) Get(ctx context.Context, owner, accountID string) (*model.PlatformAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountKey(owner, accountID)]
	if !ok {
		return nil, model.NewDomainError(model.KindNotFound, "account not found")
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAccountRepo) ListByOwner(ctx context.Context, owner string) ([]*model.PlatformAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.PlatformAccount
	for _, a := range f.accounts {
		if a.Owner == owner && a.IsActive {
			copied := *a
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (f *fakeAccountRepo) UpdateCredential(ctx context.Context, owner, accountID string, cred model.Credential, state model.RefreshState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountKey(owner, accountID)]
	if !ok {
		return model.NewDomainError(model.KindNotFound, "account not found")
	}
	a.Credential = cred
	a.RefreshState = state
	return nil
}

func (f *fakeAccountRepo) UpdateRefreshState(ctx context.Context, owner, accountID string, state model.RefreshState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountKey(owner, accountID)]
	if !ok {
		return model.NewDomainError(model.KindNotFound, "account not found")
	}
	a.RefreshState = state
	return nil
}

func (f *fakeAccountRepo) Deactivate(ctx context.Context, owner, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountKey(owner, accountID)]
	if !ok {
		return model.NewDomainError(model.KindNotFound, "account not found")
	}
	a.IsActive = false
	return nil
}

// fakeJobRepo is an in-memory IUploadJob.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.UploadJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*model.UploadJob)}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *model.UploadJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) Get(ctx context.Context, jobID string) (*model.UploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, model.NewDomainError(model.KindNotFound, "upload job not found")
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobRepo) Update(ctx context.Context, job *model.UploadJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) ListActive(ctx context.Context, owner string) ([]*model.UploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.UploadJob
	for _, job := range f.jobs {
		if owner != "" && job.Owner != owner {
			continue
		}
		if job.State == model.JobStatePending || job.State == model.JobStateUploading {
			copied := *job
			list = append(list, &copied)
		}
	}
	return list, nil
}

// fakePlatform is a scriptable IPlatform adapter.
type fakePlatform struct {
	mu             sync.Mutex
	uploadCalls    int
	refreshCalls   int
	uploadFn       func(ctx context.Context, call int, job *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error)
	refreshFn      func(call int, cred model.Credential) (model.Credential, error)
	profile        *model.PlatformAccount
	refreshStarted chan struct{}
	refreshBlock   chan struct{}
}

func (f *fakePlatform) UploadVideo(ctx context.Context, accessToken string, job *model.UploadJob, media io.Reader, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
	f.mu.Lock()
	f.uploadCalls++
	call := f.uploadCalls
	fn := f.uploadFn
	f.mu.Unlock()
	if fn == nil {
		return model.SuccessOutcome("video-1"), nil
	}
	return fn(ctx, call, job, cb)
}

func (f *fakePlatform) RefreshCredential(ctx context.Context, cred model.Credential) (model.Credential, error) {
	f.mu.Lock()
	f.refreshCalls++
	call := f.refreshCalls
	fn := f.refreshFn
	started := f.refreshStarted
	block := f.refreshBlock
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err := ctx.Err(); err != nil {
		return model.Credential{}, model.WrapDomainError(model.KindTransientNetwork, "refresh aborted", err)
	}
	if fn == nil {
		exp := time.Now().Add(time.Hour)
		return model.Credential{AccessToken: "fresh", RefreshToken: cred.RefreshToken, TokenExpiresAt: &exp}, nil
	}
	return fn(call, cred)
}

func (f *fakePlatform) FetchAccountProfile(ctx context.Context, accessToken string) (*model.PlatformAccount, error) {
	if f.profile == nil {
		return nil, model.NewDomainError(model.KindNotFound, "no channel found")
	}
	copied := *f.profile
	return &copied, nil
}

func (f *fakePlatform) ObjectURL(platformObjectID string) string {
	return "https://example.com/watch?v=" + platformObjectID
}

func (f *fakePlatform) calls() (uploads, refreshes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadCalls, f.refreshCalls
}

// noopEncryptor keeps token material readable in test assertions.
type noopEncryptor struct{}

func (noopEncryptor) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (noopEncryptor) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// fakeStatusCache is an in-memory IStatusCache with the same newer-version-wins
// rule as the Redis-backed cache.
type fakeStatusCache struct {
	mu    sync.Mutex
	snaps map[string]*dto.UploadStatusResponse
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{snaps: make(map[string]*dto.UploadStatusResponse)}
}

func (f *fakeStatusCache) SetSnapshot(ctx context.Context, snap *dto.UploadStatusResponse) {
	if snap == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if held, ok := f.snaps[snap.JobID]; ok && held.Version >= snap.Version {
		return
	}
	copied := *snap
	f.snaps[snap.JobID] = &copied
}

func (f *fakeStatusCache) GetSnapshot(ctx context.Context, jobID string) (*dto.UploadStatusResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[jobID]
	if !ok {
		return nil, false
	}
	copied := *snap
	return &copied, true
}

// fakeBindingRepo is an in-memory IBinding.
type fakeBindingRepo struct {
	mu       sync.Mutex
	bindings map[string]*model.AgentBinding
	nextID   int64
}

func newFakeBindingRepo() *fakeBindingRepo {
	return &fakeBindingRepo{bindings: make(map[string]*model.AgentBinding)}
}

func bindingKey(agentID, platform, accountID string) string {
	return agentID + "/" + platform + "/" + accountID
}

func (f *fakeBindingRepo) Upsert(ctx context.Context, b *model.AgentBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := bindingKey(b.AgentID, b.Platform, b.AccountID)
	if existing, ok := f.bindings[key]; ok {
		existing.Owner = b.Owner
		existing.AccountName = b.AccountName
		existing.AccountHandle = b.AccountHandle
		existing.AvatarURL = b.AvatarURL
		existing.SubscriberCount = b.SubscriberCount
		existing.UpdatedAt = b.UpdatedAt
		return nil
	}
	f.nextID++
	copied := *b
	copied.ID = f.nextID
	f.bindings[key] = &copied
	return nil
}

func (f *fakeBindingRepo) Get(ctx context.Context, agentID, platform, accountID string) (*model.AgentBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bindings[bindingKey(agentID, platform, accountID)]
	if !ok {
		return nil, model.NewDomainError(model.KindNotFound, "binding not found")
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBindingRepo) ListByAgent(ctx context.Context, agentID string) ([]*model.AgentBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.AgentBinding
	for _, b := range f.bindings {
		if b.AgentID == agentID {
			copied := *b
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (f *fakeBindingRepo) ListByAccount(ctx context.Context, platform, accountID string) ([]*model.AgentBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.AgentBinding
	for _, b := range f.bindings {
		if b.Platform == platform && b.AccountID == accountID {
			copied := *b
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (f *fakeBindingRepo) ListAgentIDsByOwner(ctx context.Context, owner string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]struct{}{}
	var ids []string
	for _, b := range f.bindings {
		if b.Owner != owner {
			continue
		}
		if _, ok := seen[b.AgentID]; ok {
			continue
		}
		seen[b.AgentID] = struct{}{}
		ids = append(ids, b.AgentID)
	}
	return ids, nil
}

func (f *fakeBindingRepo) UpdateMetadata(ctx context.Context, platform, accountID string, account *model.PlatformAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bindings {
		if b.Platform == platform && b.AccountID == accountID {
			b.AccountName = account.Name
			b.AccountHandle = account.Handle
			b.AvatarURL = account.AvatarURL
			b.SubscriberCount = account.SubscriberCount
		}
	}
	return nil
}

func (f *fakeBindingRepo) DeleteByAccount(ctx context.Context, platform, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, b := range f.bindings {
		if b.Platform == platform && b.AccountID == accountID {
			delete(f.bindings, key)
		}
	}
	return nil
}

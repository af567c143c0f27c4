// Package resolver binds local nodes to their remote counterparts,
// creating collections when policy permits. Resolution is at-most-once per
// node per run: results are cached by remote id and by (owner, parent, name)
// so identical network calls are never re-issued within one run.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/remote"
	"github.com/dl-alexandre/collsync/internal/scanner"
	"github.com/dl-alexandre/collsync/internal/setup"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

type nameKey struct {
	owner  uuid.UUID
	parent uuid.UUID
	name   string
}

// Resolver resolves local folders against one user's remote hierarchy. It is
// scoped to a single sync run; a long-lived process must build a fresh one
// per invocation so cached state never leaks across runs.
type Resolver struct {
	client remote.Client
	owner  types.RemoteUser
	logger logging.Logger
	dryRun bool

	mu        sync.RWMutex
	byID      map[uuid.UUID]types.RemoteNode
	byName    map[nameKey]types.RemoteNode
	synthetic map[uuid.UUID]struct{}
}

// New creates a resolver for one user's run.
func New(client remote.Client, owner types.RemoteUser, dryRun bool, logger logging.Logger) *Resolver {
	return &Resolver{
		client:    client,
		owner:     owner,
		logger:    logger,
		dryRun:    dryRun,
		byID:      make(map[uuid.UUID]types.RemoteNode),
		byName:    make(map[nameKey]types.RemoteNode),
		synthetic: make(map[uuid.UUID]struct{}),
	}
}

// Resolve determines the remote counterpart of a local folder under the
// given remote parent, creating it when absent and permitted. Callers must
// resolve parents before children.
func (r *Resolver) Resolve(ctx context.Context, node *scanner.Node, parentID uuid.UUID) (types.RemoteNode, error) {
	if node.DeclaredID != uuid.Nil {
		return r.resolveByID(ctx, node, parentID)
	}
	return r.resolveByName(ctx, node, parentID)
}

func (r *Resolver) resolveByID(ctx context.Context, node *scanner.Node, parentID uuid.UUID) (types.RemoteNode, error) {
	if cached, ok := r.cachedByID(node.DeclaredID); ok {
		return cached, nil
	}

	remoteNode, err := r.client.GetNodeByID(ctx, node.DeclaredID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			// The embedded id points nowhere; fall back to creation
			// policy under the folder's actual remote parent
			return r.notFound(ctx, node, parentID)
		}
		return types.RemoteNode{}, err
	}

	if remoteNode.Name != node.DeclaredName {
		return types.RemoteNode{}, utils.NewAppError(utils.ErrCodeConflict,
			fmt.Sprintf("Folder says %q but service says %q", node.DeclaredName, remoteNode.Name)).
			WithContext("path", node.Path).
			WithContext("nodeId", node.DeclaredID.String()).
			Build()
	}

	r.cache(remoteNode)
	return remoteNode, nil
}

func (r *Resolver) resolveByName(ctx context.Context, node *scanner.Node, parentID uuid.UUID) (types.RemoteNode, error) {
	key := nameKey{owner: r.owner.ID, parent: parentID, name: node.DeclaredName}
	if cached, ok := r.cachedByName(key); ok {
		return cached, nil
	}

	// Children of a dry-run-invented parent cannot exist remotely
	if !r.isSynthetic(parentID) {
		matches, err := r.client.ListChildrenByName(ctx, parentID, node.DeclaredName)
		if err != nil {
			return types.RemoteNode{}, err
		}

		switch len(matches) {
		case 0:
			// fall through to creation policy
		case 1:
			r.cache(matches[0])
			return matches[0], nil
		default:
			// Ambiguous remote state is never auto-resolved and never
			// cached, so a fixed hierarchy is picked up next run.
			return types.RemoteNode{}, utils.NewAppError(utils.ErrCodeAmbiguousName,
				fmt.Sprintf("Found %d remote children named %q", len(matches), node.DeclaredName)).
				WithContext("path", node.Path).
				WithContext("parentId", parentID.String()).
				Build()
		}
	}

	return r.notFound(ctx, node, parentID)
}

// notFound applies the missing-collection policy for a node with no remote
// counterpart.
func (r *Resolver) notFound(ctx context.Context, node *scanner.Node, parentID uuid.UUID) (types.RemoteNode, error) {
	if node.Setup.MissingCollection != setup.MissingCreate {
		return types.RemoteNode{}, utils.NewAppError(utils.ErrCodeNodeMissing,
			fmt.Sprintf("Remote collection %q does not exist and creation is disallowed", node.DeclaredName)).
			WithContext("path", node.Path).
			Build()
	}

	if r.dryRun {
		invented := types.RemoteNode{
			ID:           uuid.New(),
			ParentID:     parentID,
			Name:         node.DeclaredName,
			Tags:         node.Setup.Tags,
			IsCollection: true,
		}
		r.logger.Info("Would create remote collection",
			logging.F("name", node.DeclaredName),
			logging.F("path", node.Path),
		)
		r.cacheSynthetic(invented)
		return invented, nil
	}

	created, err := r.client.CreateCollection(ctx, parentID, node.DeclaredName, node.Setup.Tags)
	if err != nil {
		return types.RemoteNode{}, err
	}
	r.cache(created)
	return created, nil
}

func (r *Resolver) cache(node types.RemoteNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[node.ID] = node
	r.byName[nameKey{owner: r.owner.ID, parent: node.ParentID, name: node.Name}] = node
}

func (r *Resolver) cacheSynthetic(node types.RemoteNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[node.ID] = node
	r.byName[nameKey{owner: r.owner.ID, parent: node.ParentID, name: node.Name}] = node
	r.synthetic[node.ID] = struct{}{}
}

func (r *Resolver) cachedByID(id uuid.UUID) (types.RemoteNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.byID[id]
	return node, ok
}

func (r *Resolver) cachedByName(key nameKey) (types.RemoteNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.byName[key]
	return node, ok
}

func (r *Resolver) isSynthetic(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.synthetic[id]
	return ok
}

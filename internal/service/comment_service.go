package service

import (
	"context"
	"sort"
	"time"

	"algo-collab-be/internal/apperror"
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/repository/specification"
	"algo-collab-be/internal/repository/unitofwork"
	"algo-collab-be/pkg/events"

	"github.com/google/uuid"
)

// IEventPublisher is the slice of the NATS publisher the services need.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ICommentService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateCommentRequest) (*dto.CommentResponse, error)
	Reply(ctx context.Context, userId uuid.UUID, req *dto.ReplyCommentRequest) (*dto.CommentResponse, error)
	Resolve(ctx context.Context, userId uuid.UUID, commentId uuid.UUID) (*dto.CommentResponse, error)
	Reopen(ctx context.Context, userId uuid.UUID, commentId uuid.UUID) (*dto.CommentResponse, error)
	GetFileComments(ctx context.Context, projectId uuid.UUID, filePath string) ([]*dto.ThreadResponse, error)
	GetThread(ctx context.Context, rootId uuid.UUID) (*dto.ThreadResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, rootId uuid.UUID) error
}

type commentService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher IEventPublisher
	logger         logger.ILogger
}

func NewCommentService(
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher IEventPublisher,
	log logger.ILogger,
) ICommentService {
	return &commentService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (c *commentService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	if req.LineEnd != nil && *req.LineEnd < req.LineNumber {
		return nil, apperror.Invalid("line_end must not precede line_number")
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	comment := entity.Comment{
		Id:         uuid.New(),
		ProjectId:  req.ProjectId,
		FilePath:   req.FilePath,
		LineNumber: req.LineNumber,
		LineEnd:    req.LineEnd,
		Content:    req.Content,
		AuthorId:   userId,
		Mentions:   dedupe(req.Mentions),
		CreatedAt:  time.Now(),
	}

	if err := uow.CommentRepository().Create(ctx, &comment); err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}

	c.publish(events.NewCommentCreated(
		comment.Id.String(), comment.ProjectId.String(), comment.FilePath,
		comment.AuthorId.String(), comment.LineNumber,
	))
	c.publishMentions(&comment)

	return toCommentResponse(&comment), nil
}

func (c *commentService) Reply(ctx context.Context, userId uuid.UUID, req *dto.ReplyCommentRequest) (*dto.CommentResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	root, err := uow.CommentRepository().FindOne(ctx, specification.ByID{ID: req.RootId})
	if err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}
	if root == nil {
		return nil, apperror.ThreadNotFound(req.RootId.String())
	}
	// Threads are flat: replying to a reply attaches to its root.
	if !root.IsRoot() {
		root, err = uow.CommentRepository().FindOne(ctx, specification.ByID{ID: *root.ParentId})
		if err != nil {
			return nil, apperror.PersistenceUnavailable(err)
		}
		if root == nil {
			return nil, apperror.ThreadNotFound(req.RootId.String())
		}
	}

	rootId := root.Id
	reply := entity.Comment{
		Id:         uuid.New(),
		ProjectId:  root.ProjectId,
		FilePath:   root.FilePath,
		LineNumber: root.LineNumber,
		LineEnd:    root.LineEnd,
		Content:    req.Content,
		AuthorId:   userId,
		ParentId:   &rootId,
		Mentions:   dedupe(req.Mentions),
		CreatedAt:  time.Now(),
	}

	if err := uow.CommentRepository().Create(ctx, &reply); err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}

	c.publish(events.NewCommentReplied(
		reply.Id.String(), rootId.String(), reply.ProjectId.String(), userId.String(),
	))
	c.publishMentions(&reply)

	return toCommentResponse(&reply), nil
}

// Resolve marks a thread resolved. Resolving an already-resolved thread
// changes nothing and fires no event; replying later never un-resolves.
func (c *commentService) Resolve(ctx context.Context, userId uuid.UUID, commentId uuid.UUID) (*dto.CommentResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	root, err := c.findRoot(ctx, uow, commentId)
	if err != nil {
		return nil, err
	}

	if !root.Resolved {
		if err := uow.CommentRepository().MarkResolved(ctx, root.Id, userId); err != nil {
			return nil, apperror.PersistenceUnavailable(err)
		}
		now := time.Now()
		root.Resolved = true
		root.ResolvedBy = &userId
		root.ResolvedAt = &now

		c.publish(events.NewCommentResolved(
			root.Id.String(), root.ProjectId.String(), userId.String(),
		))
	}

	return toCommentResponse(root), nil
}

// Reopen puts a resolved thread back into the open state. It is an
// explicit action, never a side effect of replying.
func (c *commentService) Reopen(ctx context.Context, userId uuid.UUID, commentId uuid.UUID) (*dto.CommentResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	root, err := c.findRoot(ctx, uow, commentId)
	if err != nil {
		return nil, err
	}

	if root.Resolved {
		if err := uow.CommentRepository().MarkReopened(ctx, root.Id); err != nil {
			return nil, apperror.PersistenceUnavailable(err)
		}
		root.Resolved = false
		root.ResolvedBy = nil
		root.ResolvedAt = nil

		c.publish(events.NewCommentReopened(
			root.Id.String(), root.ProjectId.String(), userId.String(),
		))
	}

	return toCommentResponse(root), nil
}

func (c *commentService) GetFileComments(ctx context.Context, projectId uuid.UUID, filePath string) ([]*dto.ThreadResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	comments, err := uow.CommentRepository().FindAll(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.ByFilePath{FilePath: filePath},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}
	return groupThreads(comments), nil
}

func (c *commentService) GetThread(ctx context.Context, rootId uuid.UUID) (*dto.ThreadResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	comments, err := uow.CommentRepository().FindAll(ctx,
		specification.ThreadOf{RootID: rootId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}

	threads := groupThreads(comments)
	for _, t := range threads {
		if t.Root.Id == rootId {
			return t, nil
		}
	}
	return nil, apperror.ThreadNotFound(rootId.String())
}

// Delete hides a whole thread. Replies never outlive their root.
func (c *commentService) Delete(ctx context.Context, userId uuid.UUID, rootId uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	root, err := c.findRoot(ctx, uow, rootId)
	if err != nil {
		return err
	}
	if root.AuthorId != userId {
		return apperror.Invalid("only the author can delete a thread")
	}
	if err := uow.CommentRepository().HideThread(ctx, root.Id); err != nil {
		return apperror.PersistenceUnavailable(err)
	}
	return nil
}

func (c *commentService) findRoot(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.Comment, error) {
	comment, err := uow.CommentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}
	if comment == nil {
		return nil, apperror.ThreadNotFound(id.String())
	}
	if comment.IsRoot() {
		return comment, nil
	}
	root, err := uow.CommentRepository().FindOne(ctx, specification.ByID{ID: *comment.ParentId})
	if err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}
	if root == nil {
		return nil, apperror.ThreadNotFound(id.String())
	}
	return root, nil
}

// publish fires an event without blocking the caller. Event delivery is
// best effort; comment durability never depends on the bus.
func (c *commentService) publish(event events.Event) {
	if c.eventPublisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.eventPublisher.Publish(ctx, event); err != nil && c.logger != nil {
			c.logger.Warn("CommentService", "Event publish failed", map[string]interface{}{
				"event_type": event.EventType(),
				"error":      err.Error(),
			})
		}
	}()
}

func (c *commentService) publishMentions(comment *entity.Comment) {
	for _, mentioned := range comment.Mentions {
		c.publish(events.NewMention(
			comment.Id.String(), comment.ProjectId.String(), comment.FilePath,
			comment.AuthorId.String(), mentioned.String(),
		))
	}
}

func groupThreads(comments []*entity.Comment) []*dto.ThreadResponse {
	byRoot := make(map[uuid.UUID]*dto.ThreadResponse)
	order := make([]uuid.UUID, 0)

	for _, comment := range comments {
		if comment.IsRoot() {
			if _, ok := byRoot[comment.Id]; !ok {
				byRoot[comment.Id] = &dto.ThreadResponse{
					Root:    toCommentResponse(comment),
					Replies: make([]*dto.CommentResponse, 0),
				}
				order = append(order, comment.Id)
			}
		}
	}
	for _, comment := range comments {
		if comment.IsRoot() {
			continue
		}
		if thread, ok := byRoot[*comment.ParentId]; ok {
			thread.Replies = append(thread.Replies, toCommentResponse(comment))
		}
	}

	result := make([]*dto.ThreadResponse, 0, len(order))
	for _, id := range order {
		thread := byRoot[id]
		sort.SliceStable(thread.Replies, func(i, j int) bool {
			return thread.Replies[i].CreatedAt.Before(thread.Replies[j].CreatedAt)
		})
		result = append(result, thread)
	}
	return result
}

func toCommentResponse(c *entity.Comment) *dto.CommentResponse {
	return &dto.CommentResponse{
		Id:         c.Id,
		ProjectId:  c.ProjectId,
		FilePath:   c.FilePath,
		LineNumber: c.LineNumber,
		LineEnd:    c.LineEnd,
		Content:    c.Content,
		AuthorId:   c.AuthorId,
		ParentId:   c.ParentId,
		Mentions:   c.Mentions,
		Resolved:   c.Resolved,
		ResolvedBy: c.ResolvedBy,
		ResolvedAt: c.ResolvedAt,
		CreatedAt:  c.CreatedAt,
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"
	"socialnet/pkg/services"

	"github.com/ServiceWeaver/weaver"
)

type apiOptions struct {
	JWTSecret string `toml:"jwt_secret"`
}

type server struct {
	weaver.Implements[weaver.Main]
	weaver.WithConfig[apiOptions]
	postService weaver.Ref[services.PostService]
	_           weaver.Ref[services.NotificationSink]
	lis         weaver.Listener `weaver:"api"`
}

func Serve(ctx context.Context, s *server) error {
	mux := http.NewServeMux()
	mux.Handle("/post", instrument("get_post", s.getPostHandler, http.MethodGet))
	mux.Handle("/post/create", instrument("create_post", s.createPostHandler, http.MethodPost))
	mux.Handle("/post/delete", instrument("delete_post", s.deletePostHandler, http.MethodPost))
	mux.Handle("/post/edit", instrument("edit_post", s.editPostHandler, http.MethodPost))
	mux.Handle("/post/like", instrument("like_post", s.likePostHandler, http.MethodPost))
	mux.Handle("/post/report", instrument("report_post", s.reportPostHandler, http.MethodPost))
	mux.Handle("/post/candelete", instrument("can_delete_post", s.canDeleteHandler, http.MethodGet))
	mux.Handle("/post/cansee", instrument("can_see_post", s.canSeeHandler, http.MethodGet))
	mux.Handle("/posts", instrument("list_posts", s.listPostsHandler, http.MethodGet))
	mux.Handle("/posts/moderation", instrument("list_moderation", s.listModerationHandler, http.MethodGet))
	mux.Handle("/posts/author", instrument("list_by_author", s.listByAuthorHandler, http.MethodGet))
	mux.Handle("/posts/search", instrument("search_posts", s.searchPostsHandler, http.MethodGet))
	mux.Handle("/friends/mutual", instrument("mutual_friends", s.mutualFriendsHandler, http.MethodGet))
	var handler http.Handler = mux
	s.Logger(ctx).Info("api available", "addr", s.lis)
	return http.Serve(s.lis, handler)
}

func instrument(label string, fn func(http.ResponseWriter, *http.Request), methods ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, method := range methods {
		allowed[method] = struct{}{}
	}
	handler := func(w http.ResponseWriter, r *http.Request) {
		if _, ok := allowed[r.Method]; len(allowed) > 0 && !ok {
			msg := fmt.Sprintf("method %q not allowed", r.Method)
			http.Error(w, msg, http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
	return weaver.InstrumentHandlerFunc(label, handler)
}

func writeJSON(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func (s *server) actor(r *http.Request) (string, error) {
	return actorFromRequest(r, s.Config().JWTSecret)
}

func postIDParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("id")
	postID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Validationf("invalid post id (%s)", raw)
	}
	return postID, nil
}

type createPostRequest struct {
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments"`
	IsPrivate   bool               `json:"is_private"`
}

func (s *server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validationf("invalid request body: %s", err.Error()))
		return
	}
	post, err := s.postService.Get().Create(ctx, actorUID, req.Text, req.Attachments, req.IsPrivate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, post)
}

func (s *server) getPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	useCache := r.URL.Query().Get("cache") != "false"
	post, err := s.postService.Get().GetByID(ctx, postID, useCache)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, post)
}

func (s *server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.postService.Get().Delete(ctx, actorUID, postID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

func (s *server) editPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var edit model.PostEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, errs.Validationf("invalid request body: %s", err.Error()))
		return
	}
	post, err := s.postService.Get().Edit(ctx, actorUID, postID, edit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, post)
}

type likeResponse struct {
	Post    model.Post `json:"post"`
	IsLiked bool       `json:"is_liked"`
}

func (s *server) likePostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	post, isLiked, err := s.postService.Get().ToggleLike(ctx, actorUID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, likeResponse{Post: post, IsLiked: isLiked})
}

type reportPostRequest struct {
	ReportType string `json:"report_type"`
	Comment    string `json:"comment"`
}

func (s *server) reportPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reportPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validationf("invalid request body: %s", err.Error()))
		return
	}
	post, err := s.postService.Get().Report(ctx, actorUID, postID, req.ReportType, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, post)
}

func (s *server) canDeleteHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	canDelete, err := s.postService.Get().CanDelete(ctx, actorUID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"can_delete": canDelete})
}

func (s *server) canSeeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	postID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	canSee, err := s.postService.Get().CanSee(ctx, actorUID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"can_see": canSee})
}

func (s *server) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.postService.Get().ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, posts)
}

func (s *server) listModerationHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.postService.Get().ListModerationQueue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, posts)
}

func (s *server) listByAuthorHandler(w http.ResponseWriter, r *http.Request) {
	authorUID := r.URL.Query().Get("uid")
	posts, err := s.postService.Get().ListByAuthor(r.Context(), authorUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, posts)
}

func (s *server) searchPostsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	posts, err := s.postService.Get().Search(ctx, r.URL.Query().Get("q"), actorUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, posts)
}

func (s *server) mutualFriendsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorUID, err := s.actor(r)
	if err != nil {
		writeError(w, errs.Forbiddenf("invalid credentials: %s", err.Error()))
		return
	}
	mutual, err := s.postService.Get().MutualFriends(ctx, actorUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mutual)
}

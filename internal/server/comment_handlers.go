package server

import (
	"strconv"

	"inkwell/internal/forms"
	"inkwell/internal/service"
	"inkwell/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	msgLoginToComment = "You need to login or register to comment."
	msgCommentsClosed = "Comments are currently closed."
)

// CreateComment handles POST /post/:id
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	postURL := "/post/" + strconv.FormatUint(uint64(postID), 10)

	user := currentUser(c)
	if user == nil {
		session.AddFlash(c, session.FlashError, msgLoginToComment)
		return c.Redirect("/login")
	}
	if !s.flagEnabled(c, flagComments) {
		session.AddFlash(c, session.FlashInfo, msgCommentsClosed)
		return c.Redirect(postURL)
	}

	var form forms.CommentForm
	parseErr := c.BodyParser(&form)
	errs := form.Validate()
	if parseErr != nil {
		errs = unreadableForm()
	}
	if errs.Any() {
		post, err := s.postService.GetPost(c.UserContext(), postID)
		if err != nil {
			return err
		}
		return s.renderPost(c, fiber.StatusUnprocessableEntity, post, &form, errs)
	}

	if _, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		AuthorID: user.ID,
		PostID:   postID,
		Text:     form.Text,
	}); err != nil {
		return err
	}
	return c.Redirect(postURL)
}

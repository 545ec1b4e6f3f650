package server

import (
	"errors"
	"strconv"

	"inkwell/internal/forms"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

const msgDuplicateTitle = "A post with that title already exists."

// Home handles GET /
func (s *Server) Home(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "index", fiber.Map{
		"Title": "Inkwell",
		"Posts": posts,
	})
}

// ShowPost handles GET /post/:id
func (s *Server) ShowPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return err
	}
	return s.renderPost(c, fiber.StatusOK, post, &forms.CommentForm{}, nil)
}

func (s *Server) renderPost(c *fiber.Ctx, status int, post *models.Post, form *forms.CommentForm, errs forms.Errors) error {
	return s.render(c, status, "post", fiber.Map{
		"Title":           post.Title,
		"Post":            post,
		"Form":            form,
		"Errors":          errs,
		"CommentsEnabled": s.flagEnabled(c, flagComments),
	})
}

// NewPostPage handles GET /new-post
func (s *Server) NewPostPage(c *fiber.Ctx) error {
	return s.renderPostForm(c, fiber.StatusOK, 0, &forms.PostForm{}, nil)
}

// CreatePost handles POST /new-post
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var form forms.PostForm
	if err := c.BodyParser(&form); err != nil {
		return s.renderPostForm(c, fiber.StatusUnprocessableEntity, 0, &form, unreadableForm())
	}
	if errs := form.Validate(); errs.Any() {
		return s.renderPostForm(c, fiber.StatusUnprocessableEntity, 0, &form, errs)
	}

	_, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		ActorID:  currentUserID(c),
		Title:    form.Title,
		Subtitle: form.Subtitle,
		Body:     form.Body,
		ImgURL:   form.ImgURL,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateTitle) {
			errs := forms.Errors{}
			errs.Add("title", msgDuplicateTitle)
			return s.renderPostForm(c, fiber.StatusUnprocessableEntity, 0, &form, errs)
		}
		return err
	}
	return c.Redirect("/")
}

// EditPostPage handles GET /edit-post/:id
func (s *Server) EditPostPage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return err
	}

	form := &forms.PostForm{
		Title:    post.Title,
		Subtitle: post.Subtitle,
		ImgURL:   post.ImgURL,
		Body:     post.Body,
	}
	return s.renderPostForm(c, fiber.StatusOK, post.ID, form, nil)
}

// UpdatePost handles POST /edit-post/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := s.postService.GetPost(c.UserContext(), id); err != nil {
		return err
	}

	var form forms.PostForm
	if err := c.BodyParser(&form); err != nil {
		return s.renderPostForm(c, fiber.StatusUnprocessableEntity, id, &form, unreadableForm())
	}
	if errs := form.Validate(); errs.Any() {
		return s.renderPostForm(c, fiber.StatusUnprocessableEntity, id, &form, errs)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		ActorID:  currentUserID(c),
		PostID:   id,
		Title:    form.Title,
		Subtitle: form.Subtitle,
		Body:     form.Body,
		ImgURL:   form.ImgURL,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateTitle) {
			errs := forms.Errors{}
			errs.Add("title", msgDuplicateTitle)
			return s.renderPostForm(c, fiber.StatusUnprocessableEntity, id, &form, errs)
		}
		return err
	}
	return c.Redirect("/post/" + strconv.FormatUint(uint64(post.ID), 10))
}

// DeletePost handles GET /delete/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		ActorID: currentUserID(c),
		PostID:  id,
	}); err != nil {
		return err
	}
	return c.Redirect("/")
}

// renderPostForm shows make-post for creating (postID 0) or editing a post.
func (s *Server) renderPostForm(c *fiber.Ctx, status int, postID uint, form *forms.PostForm, errs forms.Errors) error {
	title, action := "New Post", "/new-post"
	if postID != 0 {
		title = "Edit Post"
		action = "/edit-post/" + strconv.FormatUint(uint64(postID), 10)
	}
	return s.render(c, status, "make-post", fiber.Map{
		"Title":  title,
		"IsEdit": postID != 0,
		"Action": action,
		"Form":   form,
		"Errors": errs,
	})
}

func unreadableForm() forms.Errors {
	errs := forms.Errors{}
	errs.Add("form", msgInvalidSubmission)
	return errs
}

// About handles GET /about
func (s *Server) About(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "about", fiber.Map{"Title": "About"})
}

// Contact handles GET /contact
func (s *Server) Contact(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "contact", fiber.Map{"Title": "Contact"})
}

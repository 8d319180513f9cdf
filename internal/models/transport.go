package models

import (
	"time"
)

type (
	ErrorResp struct {
		Message string `json:"message"`
	}

	TagReq struct {
		Name     string `json:"name" validate:"required,max=255"`
		Category string `json:"category" validate:"required"`
	}

	TagResp struct {
		ID       uint64 `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}

	PostReq struct {
		ImageURL string   `json:"imageUrl" validate:"required,max=2048"`
		Caption  *string  `json:"caption" validate:"omitempty,max=2000"`
		TagIDs   []uint64 `json:"tagIds" validate:"required,min=1,dive,gt=0"`
	}

	PostResp struct {
		ID          uint64    `json:"id"`
		ImageURL    string    `json:"imageUrl"`
		Caption     *string   `json:"caption"`
		CreatedAt   time.Time `json:"createdAt"`
		User        UserResp  `json:"user"`
		Tags        []TagResp `json:"tags"`
		IsFavorited bool      `json:"isFavorited"`
	}

	UserResp struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		GivenName   string `json:"givenName"`
		FamilyName  string `json:"familyName"`
		AvatarURL   string `json:"avatarUrl"`
	}

	MeResp struct {
		UserResp
		Email *string `json:"email"`
	}

	FavoriteReq struct {
		PostID uint64 `json:"postId" validate:"required,gt=0"`
	}

	// ExcludeTagReq adds one tag when TagID is set, or replaces the whole set
	// when TagIDs is present (an empty list clears it).
	ExcludeTagReq struct {
		TagID  *uint64  `json:"tagId" validate:"omitempty,gt=0"`
		TagIDs []uint64 `json:"tagIds" validate:"omitempty,dive,gt=0"`
	}
)

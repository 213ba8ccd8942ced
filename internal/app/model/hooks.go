package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	slugInvalid = regexp.MustCompile(`[^\p{L}\p{N}-]+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// GenerateSlug builds a URL slug from a product title.
func GenerateSlug(title string) string {
	slug := slugInvalid.ReplaceAllString(strings.TrimSpace(title), "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return strings.ToLower(slug)
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	return nil
}

// BeforeCreate assigns an id and, when missing, a unique slug derived from the title.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	if p.Slug != "" {
		return nil
	}

	baseSlug := GenerateSlug(p.Title)
	if baseSlug == "" {
		baseSlug = p.ID[:8]
	}
	slug := baseSlug

	counter := 1
	for {
		var count int64
		if err := tx.Session(&gorm.Session{NewDB: true}).Unscoped().
			Model(&Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			break
		}
		counter++
		slug = fmt.Sprintf("%s-%d", baseSlug, counter)
	}

	p.Slug = slug
	return nil
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	newID(&o.ID)
	return nil
}

package domain

// Post field keys.
const (
	PostFieldTitle = "title"
	PostFieldBody  = "body"
)

// Post is a published piece of content.
type Post struct {
	*Entity
}

func (p *Post) Title() string              { return p.GetString(PostFieldTitle, "") }
func (p *Post) SetTitle(title string) bool { return p.Set(PostFieldTitle, title) }
func (p *Post) Body() string               { return p.GetString(PostFieldBody, "") }
func (p *Post) SetBody(body string) bool   { return p.Set(PostFieldBody, body) }

// Publish stamps the publish time and opens the post to everyone.
func (p *Post) Publish(clock Clock) {
	if clock == nil {
		clock = SystemClock
	}
	p.SetPublishedTS(NowMillis(clock.Now()))
	p.SetVisibility(VisibilityPublic)
	p.GrantPerm(SubjectPublic, PermRead)
}

// IsPublished reports whether a publish time is set.
func (p *Post) IsPublished() bool { return p.PublishedTS() > 0 }

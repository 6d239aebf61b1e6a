package form

// LoginForm is the sign-in form. Password is not trimmed.
type LoginForm struct {
	Username   string `form:"username"     validate:"required"`
	Password   string `form:"password,raw" validate:"required"`
	RememberMe bool   `form:"remember_me"`
	Next       string `form:"next"`
}

func (LoginForm) Messages() map[string]string {
	return map[string]string{
		"username.required": "Please enter your username.",
		"password.required": "Please enter your password.",
	}
}

type RegistrationForm struct {
	Username        string `form:"username"         validate:"required,max=30"`
	Email           string `form:"email"            validate:"required,max=120,email"`
	Password        string `form:"password,raw"     validate:"required,max=72"`
	ConfirmPassword string `form:"confirm_password,raw" validate:"required,eqfield=Password"`
}

func (RegistrationForm) Messages() map[string]string {
	return map[string]string{
		"username.required":         "Please choose a username.",
		"username.max":              "Username must be 30 characters or fewer.",
		"email.required":            "Please enter your email.",
		"email.email":               "Not a valid email address.",
		"email.max":                 "Email must be 120 characters or fewer.",
		"password.required":         "Please choose a password.",
		"password.max":              "Password must be 72 characters or fewer.",
		"confirm_password.required": "Please repeat your password.",
		"confirm_password.eqfield":  "Passwords must match.",
	}
}

// PostForm backs both the new-post and the edit-post pages. Category 0
// means "no category".
type PostForm struct {
	Title      string  `form:"title"       validate:"required,max=255"`
	Slug       string  `form:"slug"        validate:"max=255"`
	Content    string  `form:"content,raw" validate:"required"`
	AuthorName string  `form:"author_name" validate:"max=30"`
	CategoryID int64   `form:"category_id" validate:"gte=0"`
	TagIDs     []int64 `form:"tags"`
}

func (PostForm) Messages() map[string]string {
	return map[string]string{
		"title.required":   "Please give the post a title.",
		"title.max":        "Title must be 255 characters or fewer.",
		"slug.max":         "Slug must be 255 characters or fewer.",
		"content.required": "Please write some content.",
		"author_name.max":  "Author name must be 30 characters or fewer.",
	}
}

// ContactForm is the public contact form. Subject is optional.
type ContactForm struct {
	Name    string `form:"name"        validate:"required"`
	Email   string `form:"email"       validate:"required,email"`
	Subject string `form:"subject"     validate:"max=255"`
	Message string `form:"message"     validate:"required,min=4"`
}

func (ContactForm) Messages() map[string]string {
	return map[string]string{
		"name.required":    "Please enter your name",
		"email.required":   "Please enter your email",
		"email.email":      "Not a valid email address",
		"message.required": "Your message is too short",
		"message.min":      "Your message is too short",
	}
}

type ProfileForm struct {
	AboutMe string `form:"about_me" validate:"max=250"`
}

func (ProfileForm) Messages() map[string]string {
	return map[string]string{
		"about_me.max": "About me must be 250 characters or fewer.",
	}
}

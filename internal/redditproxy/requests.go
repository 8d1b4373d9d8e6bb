package redditproxy

import "context"

// Comment is a comment as delivered by the proxy.
type Comment struct {
	Fullname     string  `json:"fullname"`
	Body         string  `json:"body"`
	Author       string  `json:"author"`
	LinkFullname string  `json:"link_fullname"`
	LinkAuthor   string  `json:"link_author"`
	Subreddit    string  `json:"subreddit"`
	CreatedUTC   float64 `json:"created_utc"`
}

// Post is a submission as delivered by the proxy.
type Post struct {
	Fullname   string  `json:"fullname"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
}

// ModAction is one moderator-log record as delivered by the proxy.
type ModAction struct {
	Action       string  `json:"action"`
	Mod          string  `json:"mod"`
	TargetAuthor string  `json:"target_author"`
	Subreddit    string  `json:"subreddit"`
	Details      string  `json:"details"`
	CreatedAt    float64 `json:"created_at"`
}

// PostComment replies to the given parent with the given markdown text.
func (c *Client) PostComment(ctx context.Context, workerID string, version float64, parent, text string) error {
	_, err := c.SendRequest(ctx, workerID, version, "post_comment", map[string]interface{}{
		"parent": parent,
		"text":   text,
	})
	return err
}

// Compose sends a private message. The recipient may be a user or a
// subreddit modmail ("/r/borrow").
func (c *Client) Compose(ctx context.Context, workerID string, version float64, recipient, subject, body string) error {
	_, err := c.SendRequest(ctx, workerID, version, "compose", map[string]interface{}{
		"recipient": recipient,
		"subject":   subject,
		"body":      body,
	})
	return err
}

// ShowUser fetches account-level information on a user. The boolean is
// false when the account does not exist.
func (c *Client) ShowUser(ctx context.Context, workerID string, version float64, username string) (*UserInfo, bool, error) {
	resp, err := c.SendRequest(ctx, workerID, version, "show_user", map[string]interface{}{
		"username": username,
	})
	if err != nil {
		return nil, false, err
	}
	if !resp.Copy() {
		return nil, false, nil
	}
	var info UserInfo
	if err := resp.DecodeInfo(&info); err != nil {
		return nil, false, err
	}
	return &info, true, nil
}

// UserInfo is the payload of a show_user response.
type UserInfo struct {
	CumulativeKarma     int     `json:"cumulative_karma"`
	CommentKarma        int     `json:"comment_karma"`
	LinkKarma           int     `json:"link_karma"`
	CreatedAtUTCSeconds float64 `json:"created_at_utc_seconds"`
}

func (c *Client) userFlag(ctx context.Context, workerID string, version float64, typ, subreddit, username, key string) (bool, error) {
	resp, err := c.SendRequest(ctx, workerID, version, typ, map[string]interface{}{
		"subreddit": subreddit,
		"username":  username,
	})
	if err != nil {
		return false, err
	}
	if !resp.Copy() {
		return false, nil
	}
	var info map[string]bool
	if err := resp.DecodeInfo(&info); err != nil {
		return false, err
	}
	return info[key], nil
}

// UserIsModerator reports whether the user moderates the subreddit.
func (c *Client) UserIsModerator(ctx context.Context, workerID string, version float64, subreddit, username string) (bool, error) {
	return c.userFlag(ctx, workerID, version, "user_is_moderator", subreddit, username, "moderator")
}

// UserIsApproved reports whether the user is an approved submitter.
func (c *Client) UserIsApproved(ctx context.Context, workerID string, version float64, subreddit, username string) (bool, error) {
	return c.userFlag(ctx, workerID, version, "user_is_approved", subreddit, username, "approved")
}

// UserIsBanned reports whether the user is banned from the subreddit.
func (c *Client) UserIsBanned(ctx context.Context, workerID string, version float64, subreddit, username string) (bool, error) {
	return c.userFlag(ctx, workerID, version, "user_is_banned", subreddit, username, "banned")
}

// BanUser bans the user on the subreddit with a message and a mod note.
func (c *Client) BanUser(ctx context.Context, workerID string, version float64, subreddit, username, message, note string) error {
	_, err := c.SendRequest(ctx, workerID, version, "ban_user", map[string]interface{}{
		"subreddit": subreddit,
		"username":  username,
		"message":   message,
		"note":      note,
	})
	return err
}

// UnbanUser lifts a ban on the subreddit.
func (c *Client) UnbanUser(ctx context.Context, workerID string, version float64, subreddit, username string) error {
	_, err := c.SendRequest(ctx, workerID, version, "unban_user", map[string]interface{}{
		"subreddit": subreddit,
		"username":  username,
	})
	return err
}

// DisapproveUser removes the user from the subreddit's approved submitters.
func (c *Client) DisapproveUser(ctx context.Context, workerID string, version float64, subreddit, username string) error {
	_, err := c.SendRequest(ctx, workerID, version, "disapprove_user", map[string]interface{}{
		"subreddit": subreddit,
		"username":  username,
	})
	return err
}

// FlairLink applies a css class to a link.
func (c *Client) FlairLink(ctx context.Context, workerID string, version float64, subreddit, linkFullname, cssClass string) error {
	_, err := c.SendRequest(ctx, workerID, version, "flair_link", map[string]interface{}{
		"subreddit":     subreddit,
		"link_fullname": linkFullname,
		"css_class":     cssClass,
	})
	return err
}

// SubredditComments fetches the newest comments for the subreddits, newest
// first, paged by the opaque after cursor. A non-copy response is treated
// as an empty page.
func (c *Client) SubredditComments(ctx context.Context, workerID string, version float64, subreddits []string, after string) ([]Comment, string, error) {
	args := map[string]interface{}{"subreddit": subreddits}
	if after != "" {
		args["after"] = after
	}
	resp, err := c.SendRequest(ctx, workerID, version, "subreddit_comments", args)
	if err != nil {
		return nil, "", err
	}
	if !resp.Copy() {
		return nil, "", nil
	}
	var info struct {
		Comments []Comment `json:"comments"`
		After    string    `json:"after"`
	}
	if err := resp.DecodeInfo(&info); err != nil {
		return nil, "", err
	}
	return info.Comments, info.After, nil
}

// SubredditLinks fetches the newest submissions for the subreddits,
// split into self posts and url posts.
func (c *Client) SubredditLinks(ctx context.Context, workerID string, version float64, subreddits []string, after string) (selfPosts, urlPosts []Post, nextAfter string, err error) {
	args := map[string]interface{}{"subreddit": subreddits}
	if after != "" {
		args["after"] = after
	}
	resp, err := c.SendRequest(ctx, workerID, version, "subreddit_links", args)
	if err != nil {
		return nil, nil, "", err
	}
	if !resp.Copy() {
		return nil, nil, "", nil
	}
	var info struct {
		SelfPosts []Post `json:"self"`
		URLPosts  []Post `json:"url"`
		After     string `json:"after"`
	}
	if err := resp.DecodeInfo(&info); err != nil {
		return nil, nil, "", err
	}
	return info.SelfPosts, info.URLPosts, info.After, nil
}

// LookupComment fetches a single comment by its link and comment fullnames.
// The boolean is false when the comment could not be fetched.
func (c *Client) LookupComment(ctx context.Context, workerID string, version float64, linkFullname, commentFullname string) (*Comment, bool, error) {
	resp, err := c.SendRequest(ctx, workerID, version, "lookup_comment", map[string]interface{}{
		"link_fullname":    linkFullname,
		"comment_fullname": commentFullname,
	})
	if err != nil {
		return nil, false, err
	}
	if !resp.Copy() {
		return nil, false, nil
	}
	var comment Comment
	if err := resp.DecodeInfo(&comment); err != nil {
		return nil, false, err
	}
	return &comment, true, nil
}

// Modlog fetches moderator-log records for the subreddits, newest first.
func (c *Client) Modlog(ctx context.Context, workerID string, version float64, subreddits []string, after string) ([]ModAction, string, error) {
	args := map[string]interface{}{"subreddits": subreddits}
	if after != "" {
		args["after"] = after
	}
	resp, err := c.SendRequest(ctx, workerID, version, "modlog", args)
	if err != nil {
		return nil, "", err
	}
	if !resp.Copy() {
		return nil, "", nil
	}
	var info struct {
		Actions []ModAction `json:"actions"`
		After   string      `json:"after"`
	}
	if err := resp.DecodeInfo(&info); err != nil {
		return nil, "", err
	}
	return info.Actions, info.After, nil
}

// SubredditModerators fetches the current moderator list of a subreddit.
// The boolean is false when the list could not be fetched.
func (c *Client) SubredditModerators(ctx context.Context, workerID string, version float64, subreddit string) ([]string, bool, error) {
	resp, err := c.SendRequest(ctx, workerID, version, "subreddit_moderators", map[string]interface{}{
		"subreddit": subreddit,
	})
	if err != nil {
		return nil, false, err
	}
	if !resp.Copy() {
		return nil, false, nil
	}
	var info struct {
		Mods []struct {
			Username string `json:"username"`
		} `json:"mods"`
	}
	if err := resp.DecodeInfo(&info); err != nil {
		return nil, false, err
	}
	usernames := make([]string, len(info.Mods))
	for i, mod := range info.Mods {
		usernames[i] = mod.Username
	}
	return usernames, true, nil
}

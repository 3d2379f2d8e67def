package apierror

// Code is a server error code. The jobwire API returns these as the "code"
// (or legacy "error") field of its error payload. Every code the server can
// emit has an entry here and a user-facing message in friendlyMessages;
// unknown codes fall back to the server's raw message.
type Code string

const (
	CodeUnknown Code = ""

	// Generic / validation.
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeMalformedRequest   Code = "MALFORMED_REQUEST"
	CodeResourceNotFound   Code = "RESOURCE_NOT_FOUND"
	CodeAccessDenied       Code = "ACCESS_DENIED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"

	// Authentication and accounts.
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeTokenExpired         Code = "TOKEN_EXPIRED"
	CodeTokenInvalid         Code = "TOKEN_INVALID"
	CodeSessionRevoked       Code = "SESSION_REVOKED"
	CodeAccountLocked        Code = "ACCOUNT_LOCKED"
	CodeAccountDisabled      Code = "ACCOUNT_DISABLED"
	CodeAccountUnverified    Code = "ACCOUNT_UNVERIFIED"
	CodeEmailAlreadyUsed     Code = "EMAIL_ALREADY_USED"
	CodeUsernameAlreadyUsed  Code = "USERNAME_ALREADY_USED"
	CodePasswordPolicy       Code = "PASSWORD_POLICY_VIOLATION"
	CodePasswordResetExpired Code = "PASSWORD_RESET_EXPIRED"
	CodeRoleNotAllowed       Code = "ROLE_NOT_ALLOWED"

	// Profiles.
	CodeProfileNotFound        Code = "PROFILE_NOT_FOUND"
	CodeProfileAlreadyExists   Code = "PROFILE_ALREADY_EXISTS"
	CodeProfileIncomplete      Code = "PROFILE_INCOMPLETE"
	CodeProfileKindMismatch    Code = "PROFILE_KIND_MISMATCH"
	CodeAvatarTooLarge         Code = "AVATAR_TOO_LARGE"
	CodeAvatarUnsupportedType  Code = "AVATAR_UNSUPPORTED_TYPE"
	CodeSkillLimitExceeded     Code = "SKILL_LIMIT_EXCEEDED"
	CodeExperienceOverlap      Code = "EXPERIENCE_OVERLAP"
	CodeEducationDateInvalid   Code = "EDUCATION_DATE_INVALID"
	CodeResumeNotFound         Code = "RESUME_NOT_FOUND"
	CodeResumeParseFailed      Code = "RESUME_PARSE_FAILED"
	CodeVisibilityNotAllowed   Code = "VISIBILITY_NOT_ALLOWED"
	CodeContactInfoRestricted  Code = "CONTACT_INFO_RESTRICTED"
	CodeProfileSlugTaken       Code = "PROFILE_SLUG_TAKEN"
	CodeLanguageLevelInvalid   Code = "LANGUAGE_LEVEL_INVALID"
	CodeCertificationExpired   Code = "CERTIFICATION_EXPIRED"
	CodePortfolioLinkInvalid   Code = "PORTFOLIO_LINK_INVALID"
	CodeSalaryRangeInvalid     Code = "SALARY_RANGE_INVALID"
	CodeLocationNotRecognized  Code = "LOCATION_NOT_RECOGNIZED"
	CodeNotificationPrefBroken Code = "NOTIFICATION_PREF_INVALID"

	// Job posts and applications.
	CodeJobNotFound           Code = "JOB_NOT_FOUND"
	CodeJobClosed             Code = "JOB_CLOSED"
	CodeJobExpired            Code = "JOB_EXPIRED"
	CodeJobDraftInvalid       Code = "JOB_DRAFT_INVALID"
	CodeJobQuotaExceeded      Code = "JOB_QUOTA_EXCEEDED"
	CodeApplicationExists     Code = "APPLICATION_ALREADY_EXISTS"
	CodeApplicationNotFound   Code = "APPLICATION_NOT_FOUND"
	CodeApplicationWithdrawn  Code = "APPLICATION_WITHDRAWN"
	CodeApplicationDeadline   Code = "APPLICATION_DEADLINE_PASSED"
	CodeCoverLetterTooLong    Code = "COVER_LETTER_TOO_LONG"
	CodeScreeningIncomplete   Code = "SCREENING_ANSWERS_INCOMPLETE"
	CodeCompanyNotFound       Code = "COMPANY_NOT_FOUND"
	CodeCompanyNotVerified    Code = "COMPANY_NOT_VERIFIED"
	CodeInterviewSlotConflict Code = "INTERVIEW_SLOT_CONFLICT"

	// Reviews and votes.
	CodeReviewAlreadyExists Code = "REVIEW_ALREADY_EXISTS"
	CodeReviewNotFound      Code = "REVIEW_NOT_FOUND"
	CodeReviewTooShort      Code = "REVIEW_TOO_SHORT"
	CodeReviewRejected      Code = "REVIEW_REJECTED"
	CodeSelfReviewForbidden Code = "SELF_REVIEW_FORBIDDEN"
	CodeVoteOwnContent      Code = "VOTE_OWN_CONTENT_FORBIDDEN"
	CodeReplyDepthExceeded  Code = "REPLY_DEPTH_EXCEEDED"
	CodeReplyLocked         Code = "REPLY_THREAD_LOCKED"

	// Mentorship.
	CodeMentorNotFound          Code = "MENTOR_NOT_FOUND"
	CodeMentorshipExists        Code = "MENTORSHIP_ALREADY_EXISTS"
	CodeMenteeCapacityConflict  Code = "MENTEE_CAPACITY_CONFLICT"
	CodeMentorshipEnded         Code = "MENTORSHIP_ENDED"
	CodeMentorshipSelfForbidden Code = "MENTORSHIP_SELF_FORBIDDEN"
	CodeSessionSlotUnavailable  Code = "SESSION_SLOT_UNAVAILABLE"

	// Chat.
	CodeConversationNotFound Code = "CONVERSATION_NOT_FOUND"
	CodeConversationArchived Code = "CONVERSATION_ARCHIVED"
	CodeMessageTooLong       Code = "MESSAGE_TOO_LONG"
	CodeRecipientBlocked     Code = "RECIPIENT_BLOCKED"
)

// genericFallback is used when neither the code table nor the server payload
// yields a usable message.
const genericFallback = "Something went wrong. Please try again."

var friendlyMessages = map[Code]string{
	CodeValidationFailed:   "Some fields need attention before you can continue.",
	CodeMalformedRequest:   "The request could not be processed.",
	CodeResourceNotFound:   "The requested item could not be found.",
	CodeAccessDenied:       "You don't have permission to do that.",
	CodeRateLimited:        "Too many requests. Please wait a moment and try again.",
	CodeInternalError:      "The server ran into a problem. Please try again later.",
	CodeServiceUnavailable: "The service is temporarily unavailable.",

	CodeInvalidCredentials:   "Incorrect username or password.",
	CodeTokenExpired:         "Your session has expired. Please sign in again.",
	CodeTokenInvalid:         "Your session is no longer valid. Please sign in again.",
	CodeSessionRevoked:       "You were signed out on another device.",
	CodeAccountLocked:        "Your account is locked. Contact support to restore access.",
	CodeAccountDisabled:      "Your account has been disabled.",
	CodeAccountUnverified:    "Please verify your email address before signing in.",
	CodeEmailAlreadyUsed:     "An account with this email already exists.",
	CodeUsernameAlreadyUsed:  "This username is already taken.",
	CodePasswordPolicy:       "The password does not meet the security requirements.",
	CodePasswordResetExpired: "This password reset link has expired.",
	CodeRoleNotAllowed:       "Your account type cannot perform this action.",

	CodeProfileNotFound:        "Profile not found.",
	CodeProfileAlreadyExists:   "You already have a profile of this type.",
	CodeProfileIncomplete:      "Please complete your profile first.",
	CodeProfileKindMismatch:    "This action is not available for your profile type.",
	CodeAvatarTooLarge:         "The image is too large. Maximum size is 2 MB.",
	CodeAvatarUnsupportedType:  "Unsupported image format. Use JPEG or PNG.",
	CodeSkillLimitExceeded:     "You have reached the maximum number of skills.",
	CodeExperienceOverlap:      "Work experience entries cannot overlap.",
	CodeEducationDateInvalid:   "The education dates are invalid.",
	CodeResumeNotFound:         "Resume not found.",
	CodeResumeParseFailed:      "The resume could not be read. Try a different file.",
	CodeVisibilityNotAllowed:   "This visibility setting is not available on your plan.",
	CodeContactInfoRestricted:  "Contact details cannot be shared here.",
	CodeProfileSlugTaken:       "This profile URL is already in use.",
	CodeLanguageLevelInvalid:   "Select a valid language proficiency level.",
	CodeCertificationExpired:   "This certification has expired.",
	CodePortfolioLinkInvalid:   "The portfolio link is not a valid URL.",
	CodeSalaryRangeInvalid:     "The salary range is invalid.",
	CodeLocationNotRecognized:  "We couldn't recognize this location.",
	CodeNotificationPrefBroken: "The notification settings could not be saved.",

	CodeJobNotFound:           "This job posting no longer exists.",
	CodeJobClosed:             "This job posting is closed.",
	CodeJobExpired:            "This job posting has expired.",
	CodeJobDraftInvalid:       "The job draft is missing required information.",
	CodeJobQuotaExceeded:      "You have reached your active job posting limit.",
	CodeApplicationExists:     "You have already applied to this job.",
	CodeApplicationNotFound:   "Application not found.",
	CodeApplicationWithdrawn:  "This application has been withdrawn.",
	CodeApplicationDeadline:   "The application deadline has passed.",
	CodeCoverLetterTooLong:    "The cover letter exceeds the maximum length.",
	CodeScreeningIncomplete:   "Please answer all screening questions.",
	CodeCompanyNotFound:       "Company not found.",
	CodeCompanyNotVerified:    "This company has not been verified yet.",
	CodeInterviewSlotConflict: "This interview slot is no longer available.",

	CodeReviewAlreadyExists: "You have already reviewed this workplace.",
	CodeReviewNotFound:      "Review not found.",
	CodeReviewTooShort:      "Your review is too short. Add a few more details.",
	CodeReviewRejected:      "Your review was rejected by moderation.",
	CodeSelfReviewForbidden: "You cannot review your own workplace.",
	CodeVoteOwnContent:      "You cannot vote on your own content.",
	CodeReplyDepthExceeded:  "Replies cannot be nested any deeper.",
	CodeReplyLocked:         "This thread has been locked.",

	CodeMentorNotFound:          "Mentor not found.",
	CodeMentorshipExists:        "You already have a mentorship with this mentor.",
	CodeMenteeCapacityConflict:  "This mentor is not accepting new mentees right now.",
	CodeMentorshipEnded:         "This mentorship has ended.",
	CodeMentorshipSelfForbidden: "You cannot mentor yourself.",
	CodeSessionSlotUnavailable:  "This session slot is no longer available.",

	CodeConversationNotFound: "Conversation not found.",
	CodeConversationArchived: "This conversation has been archived.",
	CodeMessageTooLong:       "The message exceeds the maximum length.",
	CodeRecipientBlocked:     "You cannot message this user.",
}

// FriendlyMessage returns the user-facing message for a code, or ok=false
// when the code has no table entry.
func FriendlyMessage(code Code) (string, bool) {
	msg, ok := friendlyMessages[code]
	return msg, ok
}

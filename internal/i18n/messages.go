package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys shared by handlers and form validation.
const (
	MsgRequired          = "validation.required"
	MsgEmail             = "validation.email"
	MsgMinLength         = "validation.min"
	MsgMaxLength         = "validation.max"
	MsgPhone             = "validation.phone"
	MsgOneOf             = "validation.oneof"
	MsgInvalid           = "validation.invalid"
	MsgValidationFailed  = "error.validation_failed"
	MsgNetwork           = "error.network"
	MsgInvalidCredential = "error.invalid_credentials"
	MsgSignupFailed      = "error.signup_failed"
	MsgProfileFailed     = "error.profile_failed"
	MsgNotAuthenticated  = "error.not_authenticated"
	MsgProfileRequired   = "error.profile_required"
	MsgInProgress        = "error.in_progress"
	MsgLoginFailed       = "error.login_failed"
	MsgNotFound          = "error.not_found"
	MsgInternal          = "error.internal"
	MsgInvalidRequest    = "error.invalid_request"
	MsgDownloadDisabled  = "error.download_unavailable"
)

type entry struct {
	key string
	en  string
	ar  string
}

var catalog = []entry{
	{MsgRequired, "This field is required", "هذا الحقل مطلوب"},
	{MsgEmail, "Enter a valid email address", "أدخل بريدًا إلكترونيًا صحيحًا"},
	{MsgMinLength, "Must be at least %s characters", "يجب ألا يقل عن %s أحرف"},
	{MsgMaxLength, "Must be at most %s characters", "يجب ألا يزيد عن %s حرفًا"},
	{MsgPhone, "Enter a valid phone number", "أدخل رقم هاتف صحيحًا"},
	{MsgOneOf, "Must be one of: %s", "يجب أن يكون أحد الخيارات: %s"},
	{MsgInvalid, "Invalid value", "قيمة غير صالحة"},
	{MsgValidationFailed, "Please correct the highlighted fields", "يرجى تصحيح الحقول المحددة"},
	{MsgNetwork, "Network error, please try again", "خطأ في الشبكة، يرجى المحاولة مرة أخرى"},
	{MsgInvalidCredential, "Incorrect email or password", "البريد الإلكتروني أو كلمة المرور غير صحيحة"},
	{MsgSignupFailed, "Could not create your account", "تعذر إنشاء حسابك"},
	{MsgProfileFailed, "Could not save your profile", "تعذر حفظ ملفك الشخصي"},
	{MsgNotAuthenticated, "Please sign in to continue", "يرجى تسجيل الدخول للمتابعة"},
	{MsgProfileRequired, "Please complete your profile first", "يرجى إكمال ملفك الشخصي أولاً"},
	{MsgInProgress, "Your request is already being processed", "طلبك قيد المعالجة بالفعل"},
	{MsgLoginFailed, "Sign in failed, please try again", "فشل تسجيل الدخول، يرجى المحاولة مرة أخرى"},
	{MsgNotFound, "Not found", "غير موجود"},
	{MsgDownloadDisabled, "Downloads are not available for this asset right now", "التنزيل غير متاح لهذا الأصل حاليًا"},
	{MsgInternal, "Something went wrong", "حدث خطأ ما"},
	{MsgInvalidRequest, "Invalid request", "طلب غير صالح"},
}

func init() {
	for _, e := range catalog {
		_ = message.SetString(language.English, e.key, e.en)
		_ = message.SetString(language.Arabic, e.key, e.ar)
	}
}

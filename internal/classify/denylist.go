package classify

// UIChrome holds navigation, sharing, reporting and sorting labels rendered
// around the review list.
var UIChrome = []string{
	"영수증", "주문", "길찾기", "공유", "신고", "업체", "소식", "이용이 제한되었습니다",
	"알림받기", "이미지 갯수", "방문자 리뷰", "블로그 리뷰", "정렬 안내", "추천순", "최신순",
	"피드형식", "리스트형식", "별건 없는데", "님의 블로그", "맛볼수있는", "데이트",
	"리뷰 클렌징", "다녀오셨나요", "경험을", "팔로우", "개의 리뷰가 더 있습니다", "펼쳐보기",
}

// HighlightPhrases are the canned keyword-review statements the site shows as
// aggregate tags ("food is tasty", "staff are kind", ...).
var HighlightPhrases = []string{
	"이런 점이 좋았어요", "음식이 맛있어요", "친절해요", "재료가 신선해요", "매장이 청결해요",
	"특별한 메뉴가 있어요", "가성비가 좋아요", "양이 많아요", "인테리어가 멋져요", "뷰가 좋아요",
	"혼밥하기 좋아요", "단체모임 하기 좋아요", "주차하기 편해요", "화장실이 깨끗해요", "특별한 날 가기 좋아요",
}

// VisitMetadata holds the visit-verification labels (visit date,
// reservation, wait time, purpose, companions) plus the notice and menu
// section labels shown next to them.
var VisitMetadata = []string{"방문일", "예약", "대기 시간", "목적", "동행", "안내", "메뉴"}

package protocol

import "github.com/dkeye/MeshCall/internal/domain"

func UserIDMsg(id domain.UserID) Message {
	return Message{Type: TypeUserID, UserID: id}
}

func AllUsers(users []domain.UserID) Message {
	return Message{Type: TypeAllUsers, Users: users}
}

func MeetingLink(link string) Message {
	return Message{Type: TypeMeetingLink, Link: link}
}

func UserJoined(id domain.UserID) Message {
	return Message{Type: TypeUserJoined, UserID: id}
}

func IncomingCall(from domain.UserID, offer Payload) Message {
	return Message{Type: TypeIncomingCall, From: from, Offer: offer}
}

func CallAccepted(from domain.UserID, answer Payload) Message {
	return Message{Type: TypeCallAccepted, From: from, Answer: answer}
}

func CallDeclined(from domain.UserID) Message {
	return Message{Type: TypeCallDeclined, From: from}
}

func CandidateFrom(from domain.UserID, cand Payload) Message {
	return Message{Type: TypeCandidate, From: from, Candidate: cand}
}

func UserLeft(id domain.UserID) Message {
	return Message{Type: TypeUserLeft, UserID: id}
}

func JoinRoom(room domain.RoomName) Message {
	return Message{Type: TypeJoinRoom, Room: room}
}

func UserCall(to domain.UserID, offer Payload) Message {
	return Message{Type: TypeUserCall, To: to, Offer: offer}
}

func AcceptCall(to domain.UserID, answer Payload) Message {
	return Message{Type: TypeAcceptCall, To: to, Answer: answer}
}

func DeclineCall(to domain.UserID) Message {
	return Message{Type: TypeDeclineCall, To: to}
}

func CandidateTo(to domain.UserID, cand Payload) Message {
	return Message{Type: TypeCandidate, To: to, Candidate: cand}
}

func LeaveRoom() Message {
	return Message{Type: TypeLeaveRoom}
}
